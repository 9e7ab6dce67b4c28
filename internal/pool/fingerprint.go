package pool

import "hash/fnv"

// connectionTypeCode fingerprints (dsn, username, password) so the pool
// can detect wrappers left over from a previous configuration (§3,
// "connection_type_code").
func connectionTypeCode(dsn, username, password string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dsn))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(username))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(password))
	return h.Sum32()
}
