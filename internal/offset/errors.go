package offset

import "fmt"

// OutOfOrderInputError is returned when a position is appended below the
// last appended position. The table is left unchanged.
type OutOfOrderInputError struct {
	Genome     string
	Chromosome string
	Position   int64
	Last       int64
}

func (e *OutOfOrderInputError) Error() string {
	return fmt.Sprintf("out of order input for %s on %s: position %d after %d",
		e.Genome, e.Chromosome, e.Position, e.Last)
}

// InvariantViolationError indicates a defect in table construction, such as a
// meta offset set below the native offset. It is never recoverable.
type InvariantViolationError struct {
	Genome     string
	Chromosome string
	Position   int64
	Message    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("offset invariant violated for %s on %s at %d: %s",
		e.Genome, e.Chromosome, e.Position, e.Message)
}

// NotReadyError is returned when a table is queried before it is sealed.
type NotReadyError struct {
	Genome     string
	Chromosome string
	State      State
}

func (e *NotReadyError) Error() string {
	switch {
	case e.Genome != "":
		return fmt.Sprintf("offset table for %s on %s is %s, not SEALED", e.Genome, e.Chromosome, e.State)
	case e.Chromosome != "":
		return fmt.Sprintf("chromosome %s is not sealed", e.Chromosome)
	default:
		return "no sealed project loaded"
	}
}
