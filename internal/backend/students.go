package backend

import (
	"context"

	"github.com/kozaktomas/attendance-kiosk/internal/roster"
)

// ListStudents returns the roster of a branch.
func (c *Client) ListStudents(ctx context.Context, branch string) ([]roster.Entry, error) {
	result, err := doGetJSON[[]roster.Entry](ctx, c, "students", branch)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// TodayAttendance returns the students marked present today in a branch,
// newest first.
func (c *Client) TodayAttendance(ctx context.Context, branch string) ([]AttendanceRecord, error) {
	result, err := doGetJSON[[]AttendanceRecord](ctx, c, "today_attendance", branch)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// Stats returns the enrolled total and today's attendance count.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	result, err := doGetJSON[Stats](ctx, c, "stats")
	if err != nil {
		return Stats{}, err
	}
	return *result, nil
}
