package converter

import (
	"strconv"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

// VehicleActivities converts records in order.
func VehicleActivities(records []model.VehicleActivityRecord) []siri.VehicleActivity {
	out := make([]siri.VehicleActivity, 0, len(records))
	for _, r := range records {
		out = append(out, VehicleActivity(r))
	}
	return out
}

// VehicleActivity converts one record.
func VehicleActivity(r model.VehicleActivityRecord) siri.VehicleActivity {
	itemID := r.ItemID
	if itemID == "" {
		itemID = strconv.FormatInt(r.ID, 10)
	}
	return siri.VehicleActivity{
		RecordedAtTime:          utils.Iso8601(r.RecordedAtTime),
		ItemIdentifier:          itemID,
		ValidUntilTime:          utils.Iso8601(r.ValidUntilTime),
		MonitoredVehicleJourney: buildMVJ(r),
	}
}

func buildMVJ(r model.VehicleActivityRecord) siri.MonitoredVehicleJourney {
	var framed *siri.FramedVehicleJourneyRef
	if r.DatedVehicleJourneyRef != "" || r.DataFrameRef != "" {
		framed = &siri.FramedVehicleJourneyRef{
			DataFrameRef:           r.DataFrameRef,
			DatedVehicleJourneyRef: r.DatedVehicleJourneyRef,
		}
	}

	originAimed := ""
	if r.OriginAimedDepartureTime != nil {
		originAimed = utils.Iso8601(*r.OriginAimedDepartureTime)
	}

	return siri.MonitoredVehicleJourney{
		LineRef:                  r.LineRef,
		DirectionRef:             r.DirectionRef,
		FramedVehicleJourneyRef:  framed,
		PublishedLineName:        r.PublishedLineName,
		OperatorRef:              r.OperatorRef,
		OriginRef:                r.OriginRef,
		OriginName:               r.OriginName,
		DestinationRef:           r.DestinationRef,
		DestinationName:          r.DestinationName,
		OriginAimedDepartureTime: originAimed,
		VehicleLocation: &siri.VehicleLocation{
			Longitude: formatCoord(r.Longitude),
			Latitude:  formatCoord(r.Latitude),
		},
		Bearing:           r.Bearing,
		Occupancy:         r.Occupancy,
		BlockRef:          r.BlockRef,
		VehicleJourneyRef: r.VehicleJourneyRef,
		VehicleRef:        r.VehicleRef,
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
