// Package model contains the catalog row and location types shared by the
// address parser, the storage backends and the locator service.
// Keep it free of I/O; no business logic here beyond small value helpers.
package model
