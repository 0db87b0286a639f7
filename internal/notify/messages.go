package notify

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"attendance/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether addr looks like a deliverable address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// AttendanceConfirmation is sent to the marked user.
func AttendanceConfirmation(user model.User, mark model.AttendanceMark) Message {
	return Message{
		Recipient: user.Email,
		Subject:   "Attendance Marked Successfully",
		Body:      fmt.Sprintf("Hello %s,\n\nYour attendance has been marked at %s.", user.Name, mark.Timestamp.Format(timeLayout)),
	}
}

// AttendanceAlert is sent to the administrator for every new mark.
func AttendanceAlert(admin string, mark model.AttendanceMark) Message {
	return Message{
		Recipient: admin,
		Subject:   fmt.Sprintf("Attendance Marked for %s", mark.Identity),
		Body: fmt.Sprintf("Attendance for %s was marked at %s (Camera %d, Confidence %.2f)",
			mark.Identity, mark.Timestamp.Format(timeLayout), mark.Camera, mark.Confidence),
	}
}

// UnauthorizedAlert is sent to the administrator for an unrecognized face.
// snapshot may be nil when the image could not be saved.
func UnauthorizedAlert(admin string, event model.UnauthorizedEvent, snapshot []byte) Message {
	body := fmt.Sprintf("An unrecognized face was detected at %s (Camera %d, Confidence %.2f).",
		event.Timestamp.Format(timeLayout), event.Camera, event.Confidence)
	if event.ImageReference != "" {
		body += fmt.Sprintf("\n\nSnapshot: %s", event.ImageReference)
	}

	msg := Message{
		Recipient: admin,
		Subject:   "Unauthorized Access Detected",
		Body:      body,
	}
	if len(snapshot) > 0 {
		name := filepath.Base(event.ImageReference)
		if event.ImageReference == "" || name == "." {
			name = fmt.Sprintf("unauthorized_%s.jpg", event.Timestamp.Format("2006-01-02_15-04-05"))
		}
		msg.Attachment = &Attachment{Filename: name, ContentType: "image/jpeg", Data: snapshot}
	}
	return msg
}

// Pacer limits how often unauthorized alerts are sent. A nil Pacer allows
// every alert.
type Pacer interface {
	Allow(now time.Time) bool
}
