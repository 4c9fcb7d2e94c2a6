package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Body       string
	Type       string
	Status     string
	CreatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Body       string
	Type       string
	Status     string
}
