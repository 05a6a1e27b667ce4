package service

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"parklot/internal/db"
	"parklot/internal/entities"
)

// NotifyService sends booking status emails and SMS. Everything here is
// fire-and-forget: a delivery failure is logged and never propagated back
// into a lifecycle transition.
type NotifyService struct{}

func NewNotifyService() *NotifyService {
	return &NotifyService{}
}

func (s *NotifyService) BookingStatusChanged(b *db.Booking, status string) {
	data := entities.BookingEmailData{
		UserName:           b.UserName,
		BookingCode:        b.Code,
		VehicleID:          b.VehicleID,
		StartTimeFormatted: b.StartTime.Format("02 Jan 2006 15:04 MST"),
		EndTimeFormatted:   b.EndTime.Format("02 Jan 2006 15:04 MST"),
		Status:             status,
		CurrentYear:        time.Now().Year(),
	}

	subject := fmt.Sprintf("Your ParkLot booking is %s - Code: %s", status, data.BookingCode)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour parking booking is %s.\n\n"+
			"Booking Details:\n"+
			"Booking Code: %s\n"+
			"Vehicle: %s\n"+
			"Check-in: %s\n"+
			"Check-out: %s\n\n"+
			"Thank you for choosing ParkLot.",
		data.UserName, status, data.BookingCode, data.VehicleID,
		data.StartTimeFormatted, data.EndTimeFormatted,
	)
	sms := fmt.Sprintf("ParkLot: booking %s is %s.\nCheck-in: %s.\nMore details in your email.",
		data.BookingCode, status, b.StartTime.Format("02/01 15:04"))

	if b.UserEmail != "" {
		go func(toEmail, toName, subject, body, code string) {
			if err := SendEmailWithSendGrid(toEmail, toName, subject, body); err != nil {
				log.Printf("Email delivery failed for booking %s: %v", code, err)
			}
		}(b.UserEmail, b.UserName, subject, body, b.Code)
	}
	if b.UserPhone != "" {
		go func(toPhone, message, code string) {
			if err := SendSMS(toPhone, message); err != nil {
				log.Printf("SMS delivery failed for booking %s: %v", code, err)
			}
		}(b.UserPhone, sms, b.Code)
	}
}

func SendEmailWithSendGrid(toEmailAddress, toName, subject, plainTextContent string) error {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY not configured")
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL not configured")
	}
	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "ParkLot"
	}

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, "")

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("SendGrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func SendSMS(toNumber, messageBody string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")

	if accountSid == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("Twilio credentials not fully configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("Destination number %q is not E.164; SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSid,
		Password:   authToken,
		AccountSid: accountSid,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetBody(messageBody)

	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
