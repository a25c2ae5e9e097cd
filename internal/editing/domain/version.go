package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/prosessportal/editing/internal/platform/errors"
)

// VersionChangeType selects which semantic version component a commit bumps.
type VersionChangeType string

const (
	// ChangeTypeMajor bumps the major component: breaking revisions.
	ChangeTypeMajor VersionChangeType = "major"
	// ChangeTypeMinor bumps the minor component: additive changes.
	ChangeTypeMinor VersionChangeType = "minor"
	// ChangeTypePatch bumps the patch component: corrections.
	ChangeTypePatch VersionChangeType = "patch"
)

// ParseVersionChangeType validates a wire value.
func ParseVersionChangeType(value string) (VersionChangeType, error) {
	switch VersionChangeType(value) {
	case ChangeTypeMajor, ChangeTypeMinor, ChangeTypePatch:
		return VersionChangeType(value), nil
	}
	return "", errors.WithMetadata(errors.CodeInvalidArgument,
		"unknown version change type",
		map[string]string{"changeType": value})
}

// InitialVersionNumber is the number assigned to a process's first version,
// and the recovery value when a stored number cannot be parsed.
const InitialVersionNumber = "1.0.0"

// NextVersionNumber computes the number following current for the given
// change type. A malformed current number resets the sequence to 1.0.0.
func NextVersionNumber(current string, change VersionChangeType) string {
	parts := strings.Split(strings.TrimSpace(current), ".")
	if len(parts) != 3 {
		return InitialVersionNumber
	}
	numbers := make([]int, 3)
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return InitialVersionNumber
		}
		numbers[i] = value
	}
	switch change {
	case ChangeTypeMajor:
		numbers[0], numbers[1], numbers[2] = numbers[0]+1, 0, 0
	case ChangeTypeMinor:
		numbers[1], numbers[2] = numbers[1]+1, 0
	case ChangeTypePatch:
		numbers[2]++
	}
	return strconv.Itoa(numbers[0]) + "." + strconv.Itoa(numbers[1]) + "." + strconv.Itoa(numbers[2])
}

// Version is an immutable snapshot of a process document. After insertion
// only the IsCurrent and IsPublished flags move, and only forward.
type Version struct {
	ID          string
	ProcessID   string
	Number      string
	Content     DocumentContent
	ChangeLog   string
	CreatedBy   string
	CreatedAt   time.Time
	IsCurrent   bool
	IsPublished bool
	PublishedAt *time.Time
	PublishedBy *string
}
