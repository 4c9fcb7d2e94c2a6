package database

import (
	"time"

	"github.com/lib/pq"
)

func (db *PgConfabRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgConfabRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
	)

	return user, err
}

func (db *PgConfabRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
	)

	return user, err
}

func (db *PgConfabRepository) ListAccounts() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email FROM accounts ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

func (db *PgConfabRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, body, type, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, sender_id, receiver_id, body, type, status, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Body,
		params.Type,
		params.Status,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Body,
		&msg.Type,
		&msg.Status,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgConfabRepository) GetConversation(userA, userB int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, body, type, status, created_at FROM messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY id ASC",
		userA,
		userB,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Body, &msg.Type, &msg.Status, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgConfabRepository) GetMessagesForUser(userId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, body, type, status, created_at FROM messages "+
			"WHERE sender_id = $1 OR receiver_id = $1 "+
			"ORDER BY created_at DESC, id DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.SenderId, &msg.ReceiverId, &msg.Body, &msg.Type, &msg.Status, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

// UpdateMessageStatuses advances the status of every message in ids with a
// single statement. Callers pass the exact set of ids they decided to
// transition; passing an empty set is a no-op.
func (db *PgConfabRepository) UpdateMessageStatuses(ids []int, status string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := db.conn.Exec(
		"UPDATE messages SET status = $1 WHERE id = ANY($2)",
		status,
		pq.Array(ids),
	)

	return err
}
