package matching

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

// activityInput is the validated view of a VehicleActivity. Mandatory
// fields come first so the first reported error is the most severe.
type activityInput struct {
	LineRef        string `validate:"required" field:"LineRef"`
	VehicleRef     string `validate:"required" field:"VehicleRef"`
	OperatorRef    string `validate:"required" field:"OperatorRef"`
	Longitude      string `validate:"required,longitude" field:"Longitude"`
	Latitude       string `validate:"required,latitude" field:"Latitude"`
	RecordedAtTime string `validate:"required,siritime" field:"RecordedAtTime"`
	ValidUntilTime string `validate:"required,siritime" field:"ValidUntilTime"`

	OriginAimedDepartureTime string `validate:"omitempty,siritime" field:"OriginAimedDepartureTime"`
	Bearing                  string `validate:"omitempty,numeric" field:"Bearing"`
	DirectionRef             string `validate:"omitempty,max=64" field:"DirectionRef"`
}

var criticalFields = map[string]bool{
	"LineRef": true, "VehicleRef": true, "OperatorRef": true,
	"Longitude": true, "Latitude": true, "RecordedAtTime": true, "ValidUntilTime": true,
}

// FieldError describes one failed field of an element.
type FieldError struct {
	Field    string
	Tag      string
	Value    string
	Critical bool
}

func (e FieldError) Message() string {
	switch e.Tag {
	case "required":
		return e.Field + " is required"
	case "siritime":
		return fmt.Sprintf("%s %q is not a valid timestamp", e.Field, e.Value)
	case "longitude", "latitude":
		return fmt.Sprintf("%s %q is not a valid %s", e.Field, e.Value, e.Tag)
	case "numeric":
		return fmt.Sprintf("%s %q is not numeric", e.Field, e.Value)
	default:
		return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
	}
}

// ParseResult is either a typed record or the reasons the element was rejected.
type ParseResult struct {
	Record *model.VehicleActivityRecord
	Errors []FieldError
}

// OK reports whether the element was accepted.
func (r ParseResult) OK() bool { return r.Record != nil }

// Severity is critical when any mandatory field failed.
func (r ParseResult) Severity() model.Severity {
	for _, e := range r.Errors {
		if e.Critical {
			return model.SeverityCritical
		}
	}
	return model.SeverityNonCritical
}

// Detail joins every failure message.
func (r ParseResult) Detail() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message()
	}
	return strings.Join(msgs, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func activityValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("field")
		})
		_ = validate.RegisterValidation("siritime", func(fl validator.FieldLevel) bool {
			_, err := utils.ParseTimestamp(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ParseActivity validates a SIRI VehicleActivity and converts it into a
// record. Route and trip ids are left for the matcher.
func ParseActivity(va siri.VehicleActivity) ParseResult {
	mvj := va.MonitoredVehicleJourney
	in := activityInput{
		LineRef:                  strings.TrimSpace(mvj.LineRef),
		VehicleRef:               strings.TrimSpace(mvj.VehicleRef),
		OperatorRef:              strings.TrimSpace(mvj.OperatorRef),
		RecordedAtTime:           strings.TrimSpace(va.RecordedAtTime),
		ValidUntilTime:           strings.TrimSpace(va.ValidUntilTime),
		OriginAimedDepartureTime: strings.TrimSpace(mvj.OriginAimedDepartureTime),
		Bearing:                  strings.TrimSpace(mvj.Bearing),
		DirectionRef:             strings.TrimSpace(mvj.DirectionRef),
	}
	if loc := mvj.VehicleLocation; loc != nil {
		in.Longitude = strings.TrimSpace(loc.Longitude)
		in.Latitude = strings.TrimSpace(loc.Latitude)
	}

	if err := activityValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return ParseResult{Errors: []FieldError{{Field: "VehicleActivity", Tag: err.Error(), Critical: true}}}
		}
		res := ParseResult{Errors: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			res.Errors = append(res.Errors, FieldError{
				Field:    fe.Field(),
				Tag:      fe.Tag(),
				Value:    fmt.Sprint(fe.Value()),
				Critical: criticalFields[fe.Field()],
			})
		}
		return res
	}

	// Validation above guarantees these conversions succeed.
	lon, _ := strconv.ParseFloat(in.Longitude, 64)
	lat, _ := strconv.ParseFloat(in.Latitude, 64)
	recorded, _ := utils.ParseTimestamp(in.RecordedAtTime)
	validUntil, _ := utils.ParseTimestamp(in.ValidUntilTime)

	rec := &model.VehicleActivityRecord{
		OperatorRef:            in.OperatorRef,
		VehicleRef:             in.VehicleRef,
		LineRef:                in.LineRef,
		PublishedLineName:      strings.TrimSpace(mvj.PublishedLineName),
		DirectionRef:           in.DirectionRef,
		RecordedAtTime:         recorded,
		ValidUntilTime:         validUntil,
		Longitude:              lon,
		Latitude:               lat,
		Bearing:                in.Bearing,
		Occupancy:              strings.TrimSpace(mvj.Occupancy),
		OriginRef:              strings.TrimSpace(mvj.OriginRef),
		OriginName:             strings.TrimSpace(mvj.OriginName),
		DestinationRef:         strings.TrimSpace(mvj.DestinationRef),
		DestinationName:        strings.TrimSpace(mvj.DestinationName),
		DatedVehicleJourneyRef: strings.TrimSpace(mvj.DatedVehicleJourneyRef()),
		BlockRef:               strings.TrimSpace(mvj.BlockRef),
		VehicleJourneyRef:      strings.TrimSpace(mvj.VehicleJourneyRef),
		ItemID:                 strings.TrimSpace(va.ItemIdentifier),
	}
	if fr := mvj.FramedVehicleJourneyRef; fr != nil {
		rec.DataFrameRef = strings.TrimSpace(fr.DataFrameRef)
	}
	if in.OriginAimedDepartureTime != "" {
		t, _ := utils.ParseTimestamp(in.OriginAimedDepartureTime)
		rec.OriginAimedDepartureTime = &t
	}
	return ParseResult{Record: rec}
}
