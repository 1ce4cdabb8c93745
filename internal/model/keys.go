package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidKey = errors.New("invalid course or usage key")

const (
	courseKeyPrefix = "course-v1:"
	usageKeyPrefix  = "block-v1:"
)

// CourseKey identifies a course run, e.g. course-v1:edX+EDX101+EDX101_RUN1.
type CourseKey struct {
	Org    string
	Number string
	Run    string
}

func NewCourseKey(org, number, run string) (CourseKey, error) {
	k := CourseKey{Org: org, Number: number, Run: run}
	if !validKeyPart(org) || !validKeyPart(number) || !validKeyPart(run) {
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return k, nil
}

func ParseCourseKey(s string) (CourseKey, error) {
	if !strings.HasPrefix(s, courseKeyPrefix) {
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	parts := strings.Split(strings.TrimPrefix(s, courseKeyPrefix), "+")
	if len(parts) != 3 {
		return CourseKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return NewCourseKey(parts[0], parts[1], parts[2])
}

func (k CourseKey) String() string {
	return courseKeyPrefix + k.Org + "+" + k.Number + "+" + k.Run
}

func (k CourseKey) MakeUsageKey(category, name string) UsageKey {
	return UsageKey{Course: k, Category: category, Name: name}
}

// RootLocation 课程根节点的 usage key
func (k CourseKey) RootLocation() UsageKey {
	return k.MakeUsageKey(CategoryCourse, CategoryCourse)
}

// UsageKey locates a block inside a course:
// block-v1:{org}+{number}+{run}+type@{category}+block@{name}
type UsageKey struct {
	Course   CourseKey
	Category string
	Name     string
}

func ParseUsageKey(s string) (UsageKey, error) {
	if !strings.HasPrefix(s, usageKeyPrefix) {
		return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	parts := strings.Split(strings.TrimPrefix(s, usageKeyPrefix), "+")
	if len(parts) != 5 {
		return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	course, err := NewCourseKey(parts[0], parts[1], parts[2])
	if err != nil {
		return UsageKey{}, err
	}
	category, ok := strings.CutPrefix(parts[3], "type@")
	if !ok || !validKeyPart(category) {
		return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	name, ok := strings.CutPrefix(parts[4], "block@")
	if !ok || !validKeyPart(name) {
		return UsageKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return UsageKey{Course: course, Category: category, Name: name}, nil
}

func (u UsageKey) String() string {
	return usageKeyPrefix + u.Course.Org + "+" + u.Course.Number + "+" + u.Course.Run +
		"+type@" + u.Category + "+block@" + u.Name
}

func validKeyPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == '~':
		default:
			return false
		}
	}
	return true
}
