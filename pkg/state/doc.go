// Package state persists settings documents per (tenant, domain) and
// resolves them against domain defaults.
//
// Store[T] only loads and saves one snapshot for one Ref. Resolver layers a
// stored snapshot over the domain defaults and runs ETag-checked mutations.
// LocalCollaborator puts both behind the settings.Collaborator contract so
// controllers can run without a network backend.
//
// Data flow:
//
//	Store -> Resolver -> layering.Merge(defaults, stored) -> settings.Document
//
// Deterministic keys:
//
//	Ref.Identifier() returns `tenant/<tenant>/<domain>`. Both MemoryStore and
//	SQLStore key records by it.
package state
