package storage

import "reelpress/internal/ports"

// Provider is the storage contract shared by the pipeline and the ops
// server. It is an alias to ports.StorageProvider to keep call-sites simple.
type Provider = ports.StorageProvider
