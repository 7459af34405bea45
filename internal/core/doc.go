// Package core is the spreadsheet import engine.
//
// An ImportJob names an uploaded workbook and the entity type it carries.
// Service.RunImport resolves the entity's Handler from the Registry, walks
// the handler's sheet row by row, turns each row into commands through the
// Dispatcher and writes IMPORTED or an error message into each row's status
// cell. A failing row never stops the run; rows that already carry a status
// are skipped, so re-running an annotated workbook is safe.
//
// Storage, command execution and queueing are interfaces implemented in
// sibling packages.
package core
