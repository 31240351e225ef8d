package models

// SecretValue pairs a secret name with the value to store.
type SecretValue struct {
	Name  string
	Value string
}

// ProvisionResult reports the outcome of an idempotent provisioning
// call (secret or bucket creation).
type ProvisionResult struct {
	Name          string
	AlreadyExists bool
}
