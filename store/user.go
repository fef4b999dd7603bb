package store

type User struct {
	Username     string
	PasswordHash string
	CreatedTs    int64
	ID           int32
}

type FindUser struct {
	ID       *int32
	Username *string
}
