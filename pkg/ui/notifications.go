package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"fvdownloader/pkg/models"
)

const notificationTitle = "FirstView Downloader"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$text = $template.GetElementsByTagName("text")
		$text.Item(0).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$text.Item(1).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%q).Show($toast)
	`, title, message, notificationTitle)
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier sends a desktop notification when a batch ends
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. The notifier is a
// no-op on platforms without one.
func NewNotifier() *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return &Notifier{sender: sender}
}

// NewNotifierWithSender uses sender for every notification
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// BatchFinished reports the outcome of a whole run
func (n *Notifier) BatchFinished(summaries []models.CollectionSummary) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(notificationTitle, BatchMessage(summaries))
}

// BatchMessage condenses summaries into one sentence
func BatchMessage(summaries []models.CollectionSummary) string {
	t := Tally(summaries)
	msg := fmt.Sprintf("%d of %d collections complete, %d images saved", t.Done, len(summaries), t.Images)
	if t.FailedImages > 0 {
		msg += fmt.Sprintf(", %d failed", t.FailedImages)
	}
	return msg
}
