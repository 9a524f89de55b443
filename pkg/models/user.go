package models

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	// IsActive is managed by the surrounding platform; the core only reads it.
	IsActive bool `json:"is_active"`
}

type Project struct {
	ID       int64 `json:"id"`
	LeaderID int64 `json:"leader_id"`
	// Collaborators holds user ids; the leader is not repeated here.
	Collaborators []int64 `json:"collaborators,omitempty"`
}

// IsMember reports whether the user leads or collaborates on the project.
func (p Project) IsMember(userID int64) bool {
	if p.LeaderID == userID {
		return true
	}
	for _, id := range p.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}
