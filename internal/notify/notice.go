package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/wolfman30/clinic-session-sync/internal/sessions"
)

// Notice is the rendered status message for one patient. Chat gets Text;
// email gets all three parts.
type Notice struct {
	Kind      sessions.StatusKind
	SessionID int64
	Subject   string
	Text      string
	HTML      string
}

// Recipient is the patient a notice is addressed to.
type Recipient struct {
	Email string
	Name  string
}

type noticeView struct {
	Greeting string
	Doctor   string
	Date     string
	Start    string
	End      string
	Started  bool
}

var noticeHTML = template.Must(template.New("notice").Parse(`<p>{{.Greeting}},</p>
{{if .Started}}<p>Your session with <strong>Dr. {{.Doctor}}</strong> on {{.Date}} from {{.Start}} to {{.End}} has started.</p>
<p>Please keep an eye on your place in the queue.</p>{{else}}<p>Your session with <strong>Dr. {{.Doctor}}</strong> on {{.Date}} from {{.Start}} to {{.End}} has been cancelled.</p>
<p>We apologize for the inconvenience.</p>{{end}}`))

// RenderNotice builds the cancelled or started notice for patient.
func RenderNotice(snap *sessions.Snapshot, patient sessions.Person, kind sessions.StatusKind) (Notice, error) {
	view := noticeView{
		Greeting: "Hello",
		Doctor:   strings.TrimSpace(snap.Doctor.FirstName + " " + snap.Doctor.LastName),
		Date:     snap.Date,
		Start:    snap.StartTime,
		End:      snap.EndTime,
		Started:  kind == sessions.StatusKindStarted,
	}
	if name := strings.TrimSpace(patient.FirstName); name != "" {
		view.Greeting += " " + name
	}
	if view.Doctor == "" {
		view.Doctor = fmt.Sprintf("#%d", snap.DoctorID)
	}

	n := Notice{Kind: kind, SessionID: snap.ID}
	when := fmt.Sprintf("on %s from %s to %s", view.Date, view.Start, view.End)
	if view.Started {
		n.Subject = "Your session has started"
		n.Text = fmt.Sprintf("%s, your session with Dr. %s %s has started. Please keep an eye on your place in the queue.", view.Greeting, view.Doctor, when)
	} else {
		n.Subject = "Your session was cancelled"
		n.Text = fmt.Sprintf("%s, your session with Dr. %s %s has been cancelled. We apologize for the inconvenience.", view.Greeting, view.Doctor, when)
	}

	var buf bytes.Buffer
	if err := noticeHTML.Execute(&buf, view); err != nil {
		return Notice{}, fmt.Errorf("notify: render notice: %w", err)
	}
	n.HTML = buf.String()
	return n, nil
}

// tags labels outgoing email so provider events can be traced back to a
// session.
func (n Notice) tags() map[string]string {
	return map[string]string{
		"session_id":  fmt.Sprintf("%d", n.SessionID),
		"notice_kind": string(n.Kind),
	}
}
