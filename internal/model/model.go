// Package model declares the persisted ledger rows.
package model

// All returns every table in migration order.
func All() []interface{} {
	return []interface{}{
		&Beneficiary{},
		&Target{},
		&Assignment{},
		&Contribution{},
		&OutboxEvent{},
	}
}
