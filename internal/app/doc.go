// Package app composes the ledger services into a running application.
//
// The package sits above storage and the individual services and wires
// them together. It is not a business logic layer; accounting rules live
// in internal/app/services/.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── platform/       # Platform and treasury
//	│   ├── account/        # User accounts and balances
//	│   ├── catalog/        # Purchasable items
//	│   └── ledgertx/       # Append-only transaction records
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── services/           # Accounts, catalog, and ledger services
//	├── httpapi/            # HTTP handlers and audit log
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus instrumentation
//
// Callers construct an Application with New, passing a Stores bundle.
// Store fields left nil fall back to a shared in-memory implementation,
// which keeps tests and local development free of external dependencies.
package app
