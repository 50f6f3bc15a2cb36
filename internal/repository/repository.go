package repository

// Repository errors
var (
	ErrSlotNotFound = &RepositoryError{Message: "appointment slot not found"}
)

// RepositoryError represents a repository error
type RepositoryError struct {
	Message string
}

func (e *RepositoryError) Error() string {
	return e.Message
}
