// Package campaign implements campaign lifecycle management.
//
// The service layer owns the campaign state machine: creation with
// recipient validation and quota pre-flight, the one-shot hand-off to the
// background dispatcher, cancellation, and progress reads. It depends on
// the repository and quota-gate interfaces defined in this package and
// should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
