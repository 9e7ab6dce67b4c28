package testsupport

import "github.com/catherinevee/connpool/internal/factory"

// NewFakeOpener builds a factory.Opener backed by the fake driver
// registered in this package, scoped to dsn. Pair it with Register(dsn,
// behavior) to control how connections opened under dsn behave.
func NewFakeOpener(dsn, username string) (*factory.SQLOpener, error) {
	return factory.NewSQLOpener(DriverName, dsn, username)
}
