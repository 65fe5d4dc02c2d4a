package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/jmoiron/sqlx"
)

// querier is satisfied by both *sqlx.Conn and *sqlx.Tx, so the helpers
// below run unchanged inside or outside a transaction.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// Session is a storage.Session bound to one pooled connection.
// It is not safe for concurrent use; each request gets its own.
type Session struct {
	conn   *sqlx.Conn
	obs    *observer
	closed bool
}

var _ storage.Session = (*Session)(nil)

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// GetAllUsers returns every user ordered by id, each with its addresses.
func (s *Session) GetAllUsers(ctx context.Context) (users []types.User, err error) {
	ctx, done := s.obs.start(ctx, "GetAllUsers")
	defer func() { done(err) }()

	users = make([]types.User, 0)
	if err := selectAll(ctx, s.conn, &users, selectUsers()); err != nil {
		return nil, fmt.Errorf("GetAllUsers: %w", err)
	}

	if err := loadUserAddresses(ctx, s.conn, users); err != nil {
		return nil, fmt.Errorf("GetAllUsers: %w", err)
	}

	return users, nil
}

// GetUserByID fetches exactly one user by primary key.
// sql.ErrNoRows is translated to storage.ErrNotFound.
func (s *Session) GetUserByID(ctx context.Context, id int64) (user types.User, err error) {
	ctx, done := s.obs.start(ctx, "GetUserByID")
	defer func() { done(err) }()

	return getUser(ctx, s.conn, id)
}

// CreateUser inserts a user row and returns it with the generated id.
func (s *Session) CreateUser(ctx context.Context, name string, fullname *string) (user types.User, err error) {
	ctx, done := s.obs.start(ctx, "CreateUser")
	defer func() { done(err) }()

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insertUser(ctx, tx, name, fullname)
		if err != nil {
			return err
		}
		user = types.User{ID: id, Name: name, Fullname: fullname, Addresses: []types.Address{}}
		return nil
	})
	if err != nil {
		return types.User{}, fmt.Errorf("CreateUser: %w", err)
	}

	return user, nil
}

// UpdateUser applies the non-nil fields and re-reads the row so the
// caller sees exactly what is stored.
func (s *Session) UpdateUser(ctx context.Context, id int64, name, fullname *string) (user types.User, err error) {
	ctx, done := s.obs.start(ctx, "UpdateUser")
	defer func() { done(err) }()

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		b := sq.Update("user_account").Where(sq.Eq{"id": id})
		if name != nil {
			b = b.Set("name", *name)
		}
		if fullname != nil {
			b = b.Set("fullname", *fullname)
		}

		// Nothing to set: fall through to the read, which still
		// reports a missing id.
		if name != nil || fullname != nil {
			n, err := execAffected(ctx, tx, b)
			if err != nil {
				return err
			}
			if n == 0 {
				return storage.ErrNotFound
			}
		}

		user, err = getUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return types.User{}, fmt.Errorf("UpdateUser: %w", err)
	}

	return user, nil
}

// DeleteUser removes the user's association rows and then the user,
// in one transaction. The schema cascades as well; the explicit delete
// keeps the invariant even on connections without foreign keys.
func (s *Session) DeleteUser(ctx context.Context, id int64) (deleted bool, err error) {
	ctx, done := s.obs.start(ctx, "DeleteUser")
	defer func() { done(err) }()

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := execAffected(ctx, tx, sq.Delete("user_address").Where(sq.Eq{"user_id": id})); err != nil {
			return err
		}

		n, err := execAffected(ctx, tx, sq.Delete("user_account").Where(sq.Eq{"id": id}))
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("DeleteUser: %w", err)
	}

	return deleted, nil
}

// GetAllAddresses returns every address ordered by id, each with its
// users.
func (s *Session) GetAllAddresses(ctx context.Context) (addresses []types.Address, err error) {
	ctx, done := s.obs.start(ctx, "GetAllAddresses")
	defer func() { done(err) }()

	addresses = make([]types.Address, 0)
	b := sq.Select("id", "email_address").From("address").OrderBy("id")
	if err := selectAll(ctx, s.conn, &addresses, b); err != nil {
		return nil, fmt.Errorf("GetAllAddresses: %w", err)
	}

	if err := loadAddressUsers(ctx, s.conn, addresses); err != nil {
		return nil, fmt.Errorf("GetAllAddresses: %w", err)
	}

	return addresses, nil
}

// inTx runs fn in a transaction on the session's connection and commits
// it, rolling back if fn fails or panics.
func (s *Session) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func selectUsers() sq.SelectBuilder {
	return sq.Select("id", "name", "fullname").From("user_account").OrderBy("id")
}

func getUser(ctx context.Context, q querier, id int64) (types.User, error) {
	var user types.User

	query, args, err := selectUsers().Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return types.User{}, fmt.Errorf("build select: %w", err)
	}

	if err := sqlx.GetContext(ctx, q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, storage.ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	users := []types.User{user}
	if err := loadUserAddresses(ctx, q, users); err != nil {
		return types.User{}, err
	}

	return users[0], nil
}

func insertUser(ctx context.Context, q querier, name string, fullname *string) (int64, error) {
	return insertReturningID(ctx, q, sq.Insert("user_account").
		Columns("name", "fullname").
		Values(name, fullname))
}

func insertAddress(ctx context.Context, q querier, email string) (int64, error) {
	return insertReturningID(ctx, q, sq.Insert("address").
		Columns("email_address").
		Values(email))
}

func linkUserAddress(ctx context.Context, q querier, link types.UserAddress) error {
	_, err := execAffected(ctx, q, sq.Insert("user_address").
		Columns("user_id", "address_id").
		Values(link.UserID, link.AddressID))
	return err
}

func countUsers(ctx context.Context, q querier) (int64, error) {
	var n int64

	query, args, err := sq.Select("COUNT(*)").From("user_account").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// userAddressRow is one (user, address) pair of the join used to
// preload User.Addresses.
type userAddressRow struct {
	UserID int64 `db:"user_id"`
	types.Address
}

// loadUserAddresses fills Addresses on every user with a single
// IN (...) query over the association table.
func loadUserAddresses(ctx context.Context, q querier, users []types.User) error {
	for i := range users {
		users[i].Addresses = make([]types.Address, 0)
	}
	if len(users) == 0 {
		return nil
	}

	index := make(map[int64]int, len(users))
	ids := make([]int64, 0, len(users))
	for i, u := range users {
		index[u.ID] = i
		ids = append(ids, u.ID)
	}

	b := sq.Select("ua.user_id AS user_id", "a.id AS id", "a.email_address AS email_address").
		From("user_address ua").
		Join("address a ON a.id = ua.address_id").
		Where(sq.Eq{"ua.user_id": ids}).
		OrderBy("a.id")

	var rows []userAddressRow
	if err := selectAll(ctx, q, &rows, b); err != nil {
		return fmt.Errorf("load user addresses: %w", err)
	}

	for _, row := range rows {
		i := index[row.UserID]
		users[i].Addresses = append(users[i].Addresses, row.Address)
	}
	return nil
}

type addressUserRow struct {
	AddressID int64 `db:"address_id"`
	types.User
}

// loadAddressUsers is loadUserAddresses for the other side of the
// association.
func loadAddressUsers(ctx context.Context, q querier, addresses []types.Address) error {
	for i := range addresses {
		addresses[i].Users = make([]types.User, 0)
	}
	if len(addresses) == 0 {
		return nil
	}

	index := make(map[int64]int, len(addresses))
	ids := make([]int64, 0, len(addresses))
	for i, a := range addresses {
		index[a.ID] = i
		ids = append(ids, a.ID)
	}

	b := sq.Select("ua.address_id AS address_id", "u.id AS id", "u.name AS name", "u.fullname AS fullname").
		From("user_address ua").
		Join("user_account u ON u.id = ua.user_id").
		Where(sq.Eq{"ua.address_id": ids}).
		OrderBy("u.id")

	var rows []addressUserRow
	if err := selectAll(ctx, q, &rows, b); err != nil {
		return fmt.Errorf("load address users: %w", err)
	}

	for _, row := range rows {
		i := index[row.AddressID]
		addresses[i].Users = append(addresses[i].Users, row.User)
	}
	return nil
}

func selectAll(ctx context.Context, q querier, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, dest, query, args...); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}

func execAffected(ctx context.Context, q querier, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func insertReturningID(ctx context.Context, q querier, b sq.InsertBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
