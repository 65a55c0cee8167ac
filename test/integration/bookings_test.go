package integration

import (
	"net/http"
	"testing"

	"unimarket/pkg/model"
	"unimarket/test/integration/testutil"
)

// These tests run against a live bookings service and MongoDB instance.
// They stay on the ledger side of the payment boundary: nothing here
// initiates or verifies a payment against the gateway.

func TestEvents_ListReturnsCatalog(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GET(t, "/api/v1/events")
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body struct {
		Data []model.Event `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(body.Data) == 0 {
		t.Fatal("expected at least one event in the catalog")
	}
	for _, event := range body.Data {
		if event.ID == "" || event.Title == "" {
			t.Errorf("event missing id or title: %+v", event)
		}
		if len(event.StallTypes) == 0 {
			t.Errorf("event %s has no stall types", event.ID)
		}
	}
}

func TestEvents_GetByID(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GET(t, "/api/v1/events/id/1")
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body struct {
		Data model.Event `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Data.ID != "1" {
		t.Errorf("expected event 1, got %q", body.Data.ID)
	}

	resp = client.GET(t, "/api/v1/events/id/no-such-event")
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestCheckout_RejectsInvalidRequest(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	tests := []struct {
		name string
		req  model.BookingRequest
	}{
		{"missing email", testutil.NewBookingRequestBuilder().WithEmail("").Build()},
		{"malformed email", testutil.NewBookingRequestBuilder().WithEmail("not-an-email").Build()},
		{"non-e164 phone", testutil.NewBookingRequestBuilder().WithPhone("0991234567").Build()},
		{"bad duration", testutil.NewBookingRequestBuilder().WithDuration("fortnight").Build()},
		{"short name", testutil.NewBookingRequestBuilder().WithName("X").Build()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := client.POST(t, "/api/v1/bookings", tt.req)
			testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
		})
	}

	// no ledger writes for rejected intake
	if count := mongo.CountBookings(t); count != 0 {
		t.Errorf("expected empty ledger, got %d bookings", count)
	}
}

func TestCheckout_RejectsUnknownSelections(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	unknownEvent := testutil.NewBookingRequestBuilder().WithEvent("99", "drinks").Build()
	resp := client.POST(t, "/api/v1/bookings", unknownEvent)
	testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)

	unknownStall := testutil.NewBookingRequestBuilder().WithEvent("1", "pottery").Build()
	resp = client.POST(t, "/api/v1/bookings", unknownStall)
	testutil.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)

	if count := mongo.CountBookings(t); count != 0 {
		t.Errorf("expected empty ledger, got %d bookings", count)
	}
}

func TestList_RequiresIdentity(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GET(t, "/api/v1/bookings")
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
}

func TestList_AllScopeIsOperatorOnly(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GETWithHeaders(t, "/api/v1/bookings?scope=all", testutil.VendorHeaders("vendor-7"))
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)

	resp = client.GETWithHeaders(t, "/api/v1/bookings?scope=all", testutil.OperatorHeaders("ops-1"))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
}

func TestList_OwnScopeStartsEmpty(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GETWithHeaders(t, "/api/v1/bookings", testutil.VendorHeaders("vendor-7"))
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body struct {
		Data       []model.Booking `json:"data"`
		TotalCount int64           `json:"total_count"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.TotalCount != 0 || len(body.Data) != 0 {
		t.Errorf("expected empty listing, got %d/%d", len(body.Data), body.TotalCount)
	}
}

func TestGetBooking_UnknownID(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GETWithHeaders(t, "/api/v1/bookings/id/66f000000000000000000000", testutil.OperatorHeaders("ops-1"))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestVerifyReturn_RequiresTxRef(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, client := env.Setup(t)
	defer env.Cleanup(t, mongo)

	resp := client.GET(t, "/api/v1/payments/verify")
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
}
