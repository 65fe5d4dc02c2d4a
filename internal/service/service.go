// Package service turns storage entities into the JSON views the HTTP
// layer returns. It holds no business rules: each function runs one
// storage call on the request's session and reshapes the result,
// flattening the user/address association into a list of emails or
// names.
package service

import (
	"context"

	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
)

// GetUsers lists every user with its addresses flattened to emails.
func GetUsers(ctx context.Context, sess storage.Session) ([]types.UserView, error) {
	users, err := sess.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]types.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	return views, nil
}

// GetUser returns one user view. storage.ErrNotFound passes through.
func GetUser(ctx context.Context, sess storage.Session, id int64) (types.UserView, error) {
	user, err := sess.GetUserByID(ctx, id)
	if err != nil {
		return types.UserView{}, err
	}
	return userView(user), nil
}

// CreateUser stores a new user and returns its raw column values.
func CreateUser(ctx context.Context, sess storage.Session, in types.UserCreate) (types.UserRecord, error) {
	user, err := sess.CreateUser(ctx, in.Name, in.Fullname)
	if err != nil {
		return types.UserRecord{}, err
	}
	return userRecord(user), nil
}

// UpdateUser changes only the fields set in in.
func UpdateUser(ctx context.Context, sess storage.Session, id int64, in types.UserUpdate) (types.UserRecord, error) {
	user, err := sess.UpdateUser(ctx, id, in.Name, in.Fullname)
	if err != nil {
		return types.UserRecord{}, err
	}
	return userRecord(user), nil
}

func DeleteUser(ctx context.Context, sess storage.Session, id int64) (bool, error) {
	return sess.DeleteUser(ctx, id)
}

// GetAddresses lists every address with its users flattened to names.
func GetAddresses(ctx context.Context, sess storage.Session) ([]types.AddressView, error) {
	addresses, err := sess.GetAllAddresses(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]types.AddressView, 0, len(addresses))
	for _, a := range addresses {
		names := make([]string, 0, len(a.Users))
		for _, u := range a.Users {
			names = append(names, u.Name)
		}
		views = append(views, types.AddressView{
			ID:           a.ID,
			EmailAddress: a.EmailAddress,
			Users:        names,
		})
	}
	return views, nil
}

func userView(u types.User) types.UserView {
	emails := make([]string, 0, len(u.Addresses))
	for _, a := range u.Addresses {
		emails = append(emails, a.EmailAddress)
	}
	return types.UserView{
		ID:        u.ID,
		Name:      u.Name,
		Fullname:  u.Fullname,
		Addresses: emails,
	}
}

func userRecord(u types.User) types.UserRecord {
	return types.UserRecord{ID: u.ID, Name: u.Name, Fullname: u.Fullname}
}
