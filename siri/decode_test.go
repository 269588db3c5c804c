package siri

import (
	"errors"
	"testing"
)

const sampleDelivery = `<?xml version="1.0" encoding="UTF-8"?>
<Siri version="2.0" xmlns="http://www.siri.org.uk/siri">
  <ServiceDelivery>
    <ResponseTimestamp>2024-03-01T10:15:30Z</ResponseTimestamp>
    <ProducerRef>ItoWorld</ProducerRef>
    <VehicleMonitoringDelivery>
      <ResponseTimestamp>2024-03-01T10:15:30Z</ResponseTimestamp>
      <VehicleActivity>
        <RecordedAtTime>2024-03-01T10:15:00Z</RecordedAtTime>
        <ItemIdentifier>item-1</ItemIdentifier>
        <ValidUntilTime>2024-03-01T10:20:00Z</ValidUntilTime>
        <MonitoredVehicleJourney>
          <LineRef>72</LineRef>
          <DirectionRef>inbound</DirectionRef>
          <FramedVehicleJourneyRef>
            <DataFrameRef>2024-03-01</DataFrameRef>
            <DatedVehicleJourneyRef>1012</DatedVehicleJourneyRef>
          </FramedVehicleJourneyRef>
          <PublishedLineName>72</PublishedLineName>
          <OperatorRef>FBRI</OperatorRef>
          <VehicleLocation>
            <Longitude>-2.5879</Longitude>
            <Latitude>51.4545</Latitude>
          </VehicleLocation>
          <Bearing>90.0</Bearing>
          <VehicleRef>V1</VehicleRef>
        </MonitoredVehicleJourney>
      </VehicleActivity>
    </VehicleMonitoringDelivery>
  </ServiceDelivery>
</Siri>`

func TestDecode_ServiceDelivery(t *testing.T) {
	doc, err := Decode([]byte(sampleDelivery))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	acts := doc.VehicleActivities()
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	mvj := acts[0].MonitoredVehicleJourney
	if mvj.OperatorRef != "FBRI" || mvj.VehicleRef != "V1" {
		t.Errorf("unexpected journey: %+v", mvj)
	}
	if mvj.DatedVehicleJourneyRef() != "1012" {
		t.Errorf("DatedVehicleJourneyRef = %q", mvj.DatedVehicleJourneyRef())
	}
	if mvj.VehicleLocation == nil || mvj.VehicleLocation.Latitude != "51.4545" {
		t.Errorf("unexpected location: %+v", mvj.VehicleLocation)
	}
}

func TestDecode_Heartbeat(t *testing.T) {
	doc, err := Decode([]byte(`<Siri><HeartbeatNotification><RequestTimestamp>2024-03-01T10:15:30Z</RequestTimestamp><Status>true</Status></HeartbeatNotification></Siri>`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.HeartbeatNotification == nil || doc.HeartbeatNotification.Status != "true" {
		t.Errorf("unexpected heartbeat: %+v", doc.HeartbeatNotification)
	}
	if doc.VehicleActivities() != nil {
		t.Error("heartbeat should carry no activities")
	}
}

func TestDecode_AllowsTrailingWhitespaceAndComments(t *testing.T) {
	doc, err := Decode([]byte(sampleDelivery + "\n  <!-- sent by avl gateway -->\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n := len(doc.VehicleActivities()); n != 1 {
		t.Errorf("activities = %d, want 1", n)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":            "   ",
		"malformed":        "<Siri><ServiceDelivery>",
		"not siri":         "<Other><Thing/></Other>",
		"no payload":       "<Siri></Siri>",
		"trailing text":    sampleDelivery + "garbage",
		"trailing element": sampleDelivery + "<Siri/>",
		"stray end tag":    sampleDelivery + "</Other>",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(body)); err == nil {
				t.Errorf("expected error for %q", body)
			}
		})
	}
	_, err := Decode([]byte("<Siri></Siri>"))
	if !errors.Is(err, ErrNotSiri) {
		t.Errorf("expected ErrNotSiri, got %v", err)
	}
}
