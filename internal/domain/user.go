package domain

// User is an account of the kalendar service. The username is the only
// identity the client uses.
type User struct {
	Username string `json:"username"`
}

func Usernames(users []User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}
