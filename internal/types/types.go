// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, service, storage, and utils can all import types without
// depending on each other.
//
// Three families of structs live here:
//
//  1. Entities   — User, Address: rows as loaded by the storage layer,
//     with their many-to-many associations attached.
//  2. Payloads   — UserCreate, UserUpdate: decoded request bodies with
//     validate:"..." rules for go-playground/validator.
//  3. Views      — UserRecord, UserView, AddressView: the exact JSON
//     shapes the HTTP layer sends back.
package types

// User represents a row of the user_account table.
//
// Struct tags:
//
//  1. db:"..."   — column name used by sqlx when scanning rows.
//     db:"-" tells sqlx to ignore the field entirely.
//  2. json:"..." — key name when the entity is encoded to JSON.
//
// Fullname is a *string because the column is nullable: nil encodes to
// JSON null and scans from SQL NULL.
type User struct {
	ID       int64   `db:"id"       json:"id"`
	Name     string  `db:"name"     json:"name"`
	Fullname *string `db:"fullname" json:"fullname"`

	// Addresses linked through the user_address association table.
	Addresses []Address `db:"-" json:"-"`
}

// Address represents a row of the address table.
type Address struct {
	ID           int64  `db:"id"            json:"id"`
	EmailAddress string `db:"email_address" json:"email_address"`

	// Users linked through the user_address association table.
	Users []User `db:"-" json:"-"`
}

// UserAddress is one row of the user_address join table.
// The pair (UserID, AddressID) is the composite primary key.
type UserAddress struct {
	UserID    int64 `db:"user_id"`
	AddressID int64 `db:"address_id"`
}

// UserCreate is the request body for POST /users.
//
//	{ "name": "alice", "fullname": "Alice A" }
//
// The max rules mirror the column sizes: name ≤ 30, fullname ≤ 100.
type UserCreate struct {
	Name     string  `json:"name"     validate:"required,max=30"`
	Fullname *string `json:"fullname" validate:"omitempty,max=100"`
}

// UserUpdate is the request body for PUT /users/{id}.
// Every field is optional; nil means "leave unchanged".
type UserUpdate struct {
	Name     *string `json:"name"     validate:"omitempty,min=1,max=30"`
	Fullname *string `json:"fullname" validate:"omitempty,max=100"`
}

// UserRecord is the raw column view of a user, returned by create and
// update.
type UserRecord struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Fullname *string `json:"fullname"`
}

// UserView is a user with its association flattened into the list of
// related email addresses.
type UserView struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Fullname  *string  `json:"fullname"`
	Addresses []string `json:"addresses"`
}

// AddressView is an address with its association flattened into the
// list of related user names.
type AddressView struct {
	ID           int64    `json:"id"`
	EmailAddress string   `json:"email_address"`
	Users        []string `json:"users"`
}
