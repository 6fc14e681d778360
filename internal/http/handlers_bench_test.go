package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/overload"
)

func benchCar() models.Car {
	return models.Car{
		ID:        1,
		Condition: models.ConditionUsed,
		Details: models.Details{
			Manufacturer:  models.Manufacturer{Code: 101, Name: "Chevrolet"},
			Model:         "Impala",
			ExternalColor: "white",
		},
		Location: models.Location{Lat: 40.730610, Lon: -73.935242, City: "New York"},
		Price:    "USD 23456.78",
	}
}

// BenchmarkCarHandler_GetCar benchmarks GET /cars/{id} through the full middleware chain.
func BenchmarkCarHandler_GetCar(b *testing.B) {
	router := NewVehiclesRouter(NewCarHandler(&mockCarService{car: benchCar()}), RouterConfig{Logger: zap.NewNop(), RequestTimeout: time.Second})
	req := httptest.NewRequest("GET", "/cars/1", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkCarHandler_ListCars benchmarks GET /cars with 100 cars.
func BenchmarkCarHandler_ListCars(b *testing.B) {
	cars := make([]models.Car, 100)
	for i := range cars {
		cars[i] = benchCar()
		cars[i].ID = int64(i + 1)
	}
	router := NewVehiclesRouter(NewCarHandler(&mockCarService{cars: cars}), RouterConfig{Logger: zap.NewNop()})
	req := httptest.NewRequest("GET", "/cars", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkCarHandler_CreateCar benchmarks body decoding on POST /cars.
func BenchmarkCarHandler_CreateCar(b *testing.B) {
	router := NewVehiclesRouter(NewCarHandler(&mockCarService{car: benchCar()}), RouterConfig{Logger: zap.NewNop()})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/cars", strings.NewReader(impalaJSON)))
	}
}

// BenchmarkCarHandler_RateLimited benchmarks the 429 path.
func BenchmarkCarHandler_RateLimited(b *testing.B) {
	defer overload.Reset()
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	router := NewVehiclesRouter(NewCarHandler(&mockCarService{car: benchCar()}), RouterConfig{Logger: zap.NewNop(), Limiter: limiter})
	req := httptest.NewRequest("GET", "/cars/1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkPriceHandler_GetPrice benchmarks GET /services/price.
func BenchmarkPriceHandler_GetPrice(b *testing.B) {
	svc := &mockPriceService{price: models.Price{Currency: "USD", Price: 10, VehicleID: 1}}
	router := NewPricingRouter(NewPriceHandler(svc), RouterConfig{Logger: zap.NewNop()})
	req := httptest.NewRequest("GET", "/services/price?vehicleId=1", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}
