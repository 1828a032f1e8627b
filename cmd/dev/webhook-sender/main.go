// Command webhook-sender posts a signed Stripe-style subscription event to a
// local server, for exercising the webhook without the Stripe CLI.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
)

var defaultClient = &http.Client{
	Timeout: 15 * time.Second,
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

func main() {
	var (
		target   = flag.String("url", "http://localhost:8080/webhooks/stripe", "webhook endpoint")
		secret   = flag.String("secret", os.Getenv("NANNYGO_STRIPE_WEBHOOK_SECRET"), "webhook signing secret")
		typ      = flag.String("type", "checkout.session.completed", "event type")
		profile  = flag.Int64("profile", 0, "profile id written to metadata")
		subID    = flag.String("sub", "sub_dev_1", "subscription id")
		customer = flag.String("customer", "cus_dev_1", "customer id")
		status   = flag.String("status", "trialing", "subscription status for customer.subscription.* events")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("a signing secret is required (-secret or NANNYGO_STRIPE_WEBHOOK_SECRET)")
	}

	payload, err := buildEvent(*typ, *profile, *subID, *customer, *status)
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(payload))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: time.Now(),
	})
	req.Header.Set("Stripe-Signature", signed.Header)

	res, err := defaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	fmt.Printf("%s\n%s\n", res.Status, body)
}

func buildEvent(typ string, profileID int64, subID, customer, status string) ([]byte, error) {
	meta := map[string]string{}
	if profileID > 0 {
		meta["profileId"] = strconv.FormatInt(profileID, 10)
	}

	var object map[string]any
	switch typ {
	case "checkout.session.completed":
		object = map[string]any{
			"id": "cs_dev_" + uuid.NewString()[:8], "object": "checkout.session", "mode": "subscription",
			"customer": customer, "subscription": subID, "metadata": meta,
		}
	case "invoice.payment_failed":
		object = map[string]any{"id": "in_dev_1", "object": "invoice", "customer": customer, "subscription": subID}
	default:
		object = map[string]any{
			"id": subID, "object": "subscription", "status": status, "customer": customer, "metadata": meta,
		}
	}

	return json.Marshal(map[string]any{
		"id":          "evt_dev_" + uuid.NewString(),
		"object":      "event",
		"api_version": "2023-10-16",
		"type":        typ,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
}
