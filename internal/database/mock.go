package database

import (
	"github.com/stretchr/testify/mock"
)

type MockConfabRepository struct {
	mock.Mock
}

func (m *MockConfabRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockConfabRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConfabRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConfabRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockConfabRepository) ListAccounts() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockConfabRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockConfabRepository) GetConversation(userA, userB int) ([]Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockConfabRepository) GetMessagesForUser(userId int) ([]Message, error) {
	args := m.Called(userId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockConfabRepository) UpdateMessageStatuses(ids []int, status string) error {
	args := m.Called(ids, status)
	return args.Error(0)
}
