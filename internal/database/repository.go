package database

type ConfabRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListAccounts() ([]User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(userA, userB int) ([]Message, error)
	GetMessagesForUser(userId int) ([]Message, error)
	UpdateMessageStatuses(ids []int, status string) error
}
