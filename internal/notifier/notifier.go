// Package notifier informs users of the changes made to their thermostats.
//
// Notifiers never return errors: delivery failures are logged and dropped.
package notifier

type Notifier interface {
	Notify(title, message string)
}

type Notifiers []Notifier

var _ Notifier = Notifiers{}

func (n Notifiers) Notify(title, message string) {
	for _, l := range n {
		l.Notify(title, message)
	}
}
