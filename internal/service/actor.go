package service

import "github.com/RayenAkrich/EduLink-sub000/internal/models"

// Actor identifies the authenticated caller for ownership and scoping
// decisions that route-level role checks cannot express.
type Actor struct {
	ID   int64
	Role models.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// IsTeacher reports whether the actor holds the teacher role.
func (a Actor) IsTeacher() bool {
	return a.Role == models.RoleTeacher
}

// IsParent reports whether the actor holds the parent role.
func (a Actor) IsParent() bool {
	return a.Role == models.RoleParent
}
