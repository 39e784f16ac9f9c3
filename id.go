package jobstore

import "github.com/xraph/jobstore/id"

// ID is the identifier type for servers and connections.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
