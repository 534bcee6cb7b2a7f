package gatewayip_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Travis-Britz/gatewayip"
)

func ExampleNew() {
	allow, err := gatewayip.ParseAllowList(os.Getenv("VALID_IP"))
	if err != nil {
		log.Fatalf("invalid allow-list: %s", err)
	}
	c, err := gatewayip.New(
		"home.ddns.example.net",
		gatewayip.ByName("Home"),
		gatewayip.UsingCloudflare(os.Getenv("CF_ACCOUNT_ID"), os.Getenv("CF_API_TOKEN")),
		gatewayip.UsingTelegram(os.Getenv("TELEGRAM_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID")),
		gatewayip.WithAllowList(allow),
		gatewayip.WithLogger(log.New(io.Discard, "", 0)),
		gatewayip.UsingHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	)
	if err != nil {
		log.Fatalf("error creating gatewayip client: %s", err)
	}
	// run once:
	result := c.Reconcile(context.Background())
	fmt.Println(result)
}

func ExampleByID() {
	// Looking a location up by identifier needs no search,
	// and the update only patches the networks.
	c, err := gatewayip.New("home.ddns.example.net",
		gatewayip.ByID(os.Getenv("CF_LOCATION_ID")),
		gatewayip.UsingCloudflare(os.Getenv("CF_ACCOUNT_ID"), os.Getenv("CF_API_TOKEN")),
	)
	if err != nil {
		log.Fatalf("error creating gatewayip client: %s", err)
	}
	fmt.Println(c.Reconcile(context.Background()))
}

func ExampleRunDaemon() {
	c, err := gatewayip.New("home.ddns.example.net",
		gatewayip.ByName("Home"),
		gatewayip.UsingCloudflare(os.Getenv("CF_ACCOUNT_ID"), os.Getenv("CF_API_TOKEN")),
	)
	if err != nil {
		log.Fatalf("error creating gatewayip client: %s", err)
	}

	// run every 5 minutes and stop after an hour:
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
	defer cancel()
	gatewayip.RunDaemon(ctx, c, 5*time.Minute, log.Default())
}

func ExampleHandler() {
	c, err := gatewayip.New("home.ddns.example.net",
		gatewayip.ByName("Home"),
		gatewayip.UsingCloudflare(os.Getenv("CF_ACCOUNT_ID"), os.Getenv("CF_API_TOKEN")),
	)
	if err != nil {
		log.Fatalf("error creating gatewayip client: %s", err)
	}
	// GET /run reconciles; every other path answers with gatewayip.InfoMessage.
	log.Fatal(http.ListenAndServe("127.0.0.1:8080", gatewayip.Handler(c, log.Default())))
}

func ExampleDoHWireResolver() {
	r, err := gatewayip.DoHWireResolver("home.ddns.example.net", "https://dns.google/dns-query")
	if err != nil {
		log.Fatalf("error creating resolver: %s", err)
	}
	c, err := gatewayip.New("home.ddns.example.net",
		gatewayip.ByName("Home"),
		gatewayip.UsingCloudflare(os.Getenv("CF_ACCOUNT_ID"), os.Getenv("CF_API_TOKEN")),
		gatewayip.UsingResolver(r),
	)
	if err != nil {
		log.Fatalf("error creating gatewayip client: %s", err)
	}
	fmt.Println(c.Reconcile(context.Background()))
}
