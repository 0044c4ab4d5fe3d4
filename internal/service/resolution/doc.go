// Package resolution implements template resolution for a user: it loads the
// user, organization, and active rules, builds an evaluation context, and
// delegates to the rule engine, optionally falling back to the organization's
// default template.
//
// The service depends on repository interfaces defined in this package and
// should never import from api/. Repository implementations live in
// repository/postgres/.
package resolution
