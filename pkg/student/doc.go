// Package student provides a client for the student chaincode exposed by a
// Hyperledger FireFly node. Each operation (createStudent, readStudent,
// updateStudent, deleteStudent) is a single POST to
// {endpoint}/invoke/{method} with a {"input": {...}} body holding exactly the
// fields the method needs. Replies are returned as raw JSON; failures are
// reported as *ConfigurationError, *ValidationError, *TransportError or
// *DecodeError.
//
// NewFromEnv mirrors the runtime contract used inside deployments:
// FIREFLY_NODE_URL selects the node and is required unless
// FIREFLY_RUNTIME_MODE is explicitly "mock"; FIREFLY_MOCK_SEED pre-populates
// the in-memory ledger used in that mode.
package student
