// Command paycli sends an M-Pesa payment prompt through a quickpay server and
// waits for the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quickpay/internal/domain"
	"quickpay/internal/logging"
	"quickpay/internal/poller"
	"quickpay/pkg/client"

	"go.uber.org/zap"
)

func main() {
	phone := flag.String("phone", "", "M-Pesa phone number, e.g. 0700000000")
	amount := flag.String("amount", "", "amount in KES, minimum 1")
	server := flag.String("server", envOr("QUICKPAY_SERVER", "http://localhost:8080"), "quickpay server base URL")
	verbose := flag.Bool("v", false, "log every status check")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		if l, err := logging.New("development"); err == nil {
			logger = l
		}
	}
	os.Exit(run(*server, *phone, *amount, logger))
}

func run(server, phone, amountStr string, logger *zap.Logger) int {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(amountStr) == "" {
		toast("Missing Information", "Please enter both phone number and amount.")
		return 2
	}
	if !domain.ValidPhone(phone) {
		toast("Invalid Phone Number", "Please enter a valid Kenyan phone number (e.g., 0700000000).")
		return 2
	}
	amount, err := domain.ParseAmount(amountStr)
	if err != nil {
		toast("Invalid Amount", "Please enter a valid amount (minimum KES 1).")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(server, 40*time.Second)
	fmt.Println("Processing...")
	res, err := api.Initiate(ctx, phone, amount)
	if err != nil {
		msg := "Failed to initiate payment"
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		toast("Payment Failed", msg)
		return 1
	}
	toast("STK Push Sent! 📱", res.Message)
	fmt.Println("Check your phone and enter your M-Pesa PIN to complete the payment.")

	h := poller.New(api, poller.DefaultConfig(), logger).Start(ctx, res.PaymentID, report)
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Stop()
		fmt.Println("Stopped waiting for payment confirmation.")
		return 130
	}
	if h.Outcome().Status == domain.StatusCompleted {
		return 0
	}
	return 1
}

func report(o poller.Outcome) {
	switch o.Status {
	case domain.StatusCompleted:
		toast("Payment Successful! ✅", "Payment completed. Receipt: "+o.Receipt)
	case domain.StatusFailed:
		toast("Payment Failed ❌", "The payment was not successful. Please try again.")
	case domain.StatusCancelled:
		toast("Payment Cancelled", "You cancelled the payment.")
	default:
		toast("Payment Status Unknown", "Unable to confirm payment status. Please check your M-Pesa messages.")
	}
}

func toast(title, description string) {
	fmt.Printf("%s\n  %s\n", title, description)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
