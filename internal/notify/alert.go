package notify

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Alerter is the operator-facing channel for problems a person has to look at
type Alerter interface {
	Alert(ctx context.Context, subject string, err error, fields logrus.Fields)
}

// OperatorAlerter logs every alert at error level and, when a sender and
// address are configured, emails the operator
type OperatorAlerter struct {
	logger  logrus.FieldLogger
	sender  Sender
	address string
}

func NewOperatorAlerter(logger logrus.FieldLogger, sender Sender, address string) *OperatorAlerter {
	return &OperatorAlerter{logger: logger, sender: sender, address: address}
}

func (a *OperatorAlerter) Alert(ctx context.Context, subject string, err error, fields logrus.Fields) {
	entry := a.logger.WithFields(fields).WithField("alert", subject)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("operator alert")

	if a.sender == nil || a.address == "" {
		return
	}

	if sendErr := a.sender.Send(a.address, "[rent-ledger] "+subject, alertBody(err, fields)); sendErr != nil {
		a.logger.WithError(sendErr).WithField("alert", subject).Warn("failed to email operator alert")
	}
}

func alertBody(err error, fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<h1>Ledger alert</h1>")
	if err != nil {
		fmt.Fprintf(&b, "<p><strong>%s</strong></p>", template.HTMLEscapeString(err.Error()))
	}
	b.WriteString("<ul>")
	for _, k := range keys {
		fmt.Fprintf(&b, "<li>%s: %s</li>", template.HTMLEscapeString(k),
			template.HTMLEscapeString(fmt.Sprint(fields[k])))
	}
	b.WriteString("</ul>")
	return b.String()
}
