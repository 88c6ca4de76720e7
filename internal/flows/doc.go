// Package flows contains the orchestration logic behind every Engine
// operation.
//
// Each flow function (RunLogin, RunRegister, RunConfirmPasswordReset, ...)
// takes a dependency struct of plain funcs plus metric ids, audit event
// names and the sentinel errors to return. Flows hold no state between
// calls and never import the root package; the Engine builds the
// dependency structs once and maps store records onto [Account].
//
// Flows never see raw secrets at rest: tokens are hashed through the
// HashToken dependency before any store call.
package flows
