// Package repository defines the storage interface for host correlation
// entities. The sqlite subpackage provides the only production
// implementation; services depend on the interface so phase logic can be
// exercised against an in-memory database in tests.
package repository
