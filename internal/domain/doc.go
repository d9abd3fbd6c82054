// Package domain contains the core concepts of the quote service: the quote
// itself and the failure kinds a quote request can end in.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Postgres) concerns.
package domain
