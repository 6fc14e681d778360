package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/vehicles-api/internal/client"
	"github.com/kjstillabower/vehicles-api/internal/events"
	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/pricing"
	"github.com/kjstillabower/vehicles-api/internal/service"
	"github.com/kjstillabower/vehicles-api/internal/storage/memory"
)

// newScenarioStack wires a vehicles-api router to a real pricing-service router and a stub
// maps upstream, both served over httptest.
func newScenarioStack(t *testing.T) (http.Handler, *events.MemoryPublisher) {
	t.Helper()
	prices := pricing.NewService(map[int64]models.Price{
		1: {Currency: pricing.Currency, Price: 23456.78, VehicleID: 1},
	})
	pricingSrv := httptest.NewServer(NewPricingRouter(NewPriceHandler(prices), RouterConfig{}))
	t.Cleanup(pricingSrv.Close)

	mapsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Address{
			Address: "777 Brockton Avenue", City: "Abington", State: "MA", Zip: "2351",
		})
	}))
	t.Cleanup(mapsSrv.Close)

	priceClient, err := client.NewPricingClient(client.Options{URL: pricingSrv.URL + "/services/price", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewPricingClient() error = %v", err)
	}
	mapsClient, err := client.NewMapsClient(client.Options{URL: mapsSrv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewMapsClient() error = %v", err)
	}

	publisher := &events.MemoryPublisher{}
	svc := service.NewVehicleService(memory.NewCarStore(), priceClient, mapsClient, publisher, service.Options{})
	router := NewVehiclesRouter(NewCarHandler(svc), RouterConfig{Logger: zap.NewNop(), RequestTimeout: 5 * time.Second})
	return router, publisher
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeCarBody(t *testing.T, w *httptest.ResponseRecorder) models.Car {
	t.Helper()
	var car models.Car
	if err := json.NewDecoder(w.Body).Decode(&car); err != nil {
		t.Fatalf("decode car: %v", err)
	}
	return car
}

// TestVehiclesRouter_ImpalaLifecycle walks create, read, update, delete and read-after-delete.
func TestVehiclesRouter_ImpalaLifecycle(t *testing.T) {
	router, publisher := newScenarioStack(t)

	w := doJSON(t, router, "POST", "/cars", impalaJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /cars status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "/cars/1" {
		t.Errorf("Location = %q, want /cars/1", got)
	}
	created := decodeCarBody(t, w)
	if created.ID != 1 {
		t.Fatalf("created id = %d, want 1", created.ID)
	}

	w = doJSON(t, router, "GET", "/cars/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /cars/1 status = %d, want 200", w.Code)
	}
	got := decodeCarBody(t, w)
	if got.Details.ExternalColor != "white" {
		t.Errorf("color = %q, want white", got.Details.ExternalColor)
	}
	if got.Price != "USD 23456.78" {
		t.Errorf("price = %q, want USD 23456.78", got.Price)
	}
	if got.Location.City != "Abington" {
		t.Errorf("city = %q, want Abington", got.Location.City)
	}
	if got.Location.Lat != 40.730610 || got.Location.Lon != -73.935242 {
		t.Errorf("coordinates = %v,%v", got.Location.Lat, got.Location.Lon)
	}

	w = doJSON(t, router, "PUT", "/cars/1", strings.Replace(impalaJSON, `"white"`, `"red"`, 1))
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /cars/1 status = %d, want 200: %s", w.Code, w.Body.String())
	}
	updated := decodeCarBody(t, w)
	if updated.Details.ExternalColor != "red" {
		t.Errorf("updated color = %q, want red", updated.Details.ExternalColor)
	}
	if !updated.ModifiedAt.After(updated.CreatedAt) {
		t.Errorf("modifiedAt %v not after createdAt %v", updated.ModifiedAt, updated.CreatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	w = doJSON(t, router, "DELETE", "/cars/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /cars/1 status = %d, want 204", w.Code)
	}

	w = doJSON(t, router, "GET", "/cars/1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want 404", w.Code)
	}

	var types []events.Type
	for _, e := range publisher.Events() {
		types = append(types, e.Type)
	}
	want := []events.Type{events.CarCreated, events.CarUpdated, events.CarDeleted}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

// TestVehiclesRouter_ListAfterDeletes verifies list length tracks non-deleted cars.
func TestVehiclesRouter_ListAfterDeletes(t *testing.T) {
	router, _ := newScenarioStack(t)
	for i := 0; i < 3; i++ {
		if w := doJSON(t, router, "POST", "/cars", impalaJSON); w.Code != http.StatusCreated {
			t.Fatalf("POST %d status = %d", i, w.Code)
		}
	}
	if w := doJSON(t, router, "DELETE", "/cars/2", ""); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", w.Code)
	}

	w := doJSON(t, router, "GET", "/cars", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /cars status = %d", w.Code)
	}
	var list models.CarList
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].ID != 1 || list.Items[1].ID != 3 {
		t.Errorf("items = %+v, want ids 1 and 3", list.Items)
	}
}

// TestVehiclesRouter_UnpricedCarServed verifies a car without a price is still served.
func TestVehiclesRouter_UnpricedCarServed(t *testing.T) {
	router, _ := newScenarioStack(t)
	doJSON(t, router, "POST", "/cars", impalaJSON)
	doJSON(t, router, "POST", "/cars", impalaJSON)

	w := doJSON(t, router, "GET", "/cars/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /cars/2 status = %d, want 200", w.Code)
	}
	car := decodeCarBody(t, w)
	if car.Price != "" {
		t.Errorf("price = %q, want empty", car.Price)
	}
	if car.Location.City != "Abington" {
		t.Errorf("city = %q, want address still enriched", car.Location.City)
	}
}

// TestPricingRouter_GetPrice verifies the pricing route end to end.
func TestPricingRouter_GetPrice(t *testing.T) {
	svc := &mockPriceService{price: models.Price{Currency: "USD", Price: 10, VehicleID: 1}}
	router := NewPricingRouter(NewPriceHandler(svc), RouterConfig{RequestTimeout: time.Second})

	w := doJSON(t, router, "GET", "/services/price?vehicleId=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.calls != 1 {
		t.Errorf("lookup calls = %d, want 1", svc.calls)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID missing")
	}

	w = doJSON(t, router, "POST", "/services/price?vehicleId=1", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}
