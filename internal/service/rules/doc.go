// Package rules implements the signature rule engine: per-dimension condition
// evaluators and the priority-ordered resolver that picks a template for an
// evaluation context.
//
// Everything in this package is pure: no I/O and no clocks. The resolution
// service in service/resolution owns loading rules and building contexts;
// this package only decides.
package rules
