package stock

import "fmt"

// OpError reports a failed controller operation.
type OpError struct {
	Op      string
	Product string
	Field   string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("stock: %s %s:%s: %v", e.Op, e.Product, e.Field, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Message is a short description suitable for showing to a user.
func (e *OpError) Message() string {
	switch e.Op {
	case "fetch":
		return "could not load stock"
	case "add":
		return "could not add stock"
	case "infinite":
		return "could not set infinite stock"
	case "clear":
		return "could not clear stock"
	case "pull":
		return "could not pull stock"
	case "remove":
		return "could not remove item"
	default:
		return "stock operation failed"
	}
}
