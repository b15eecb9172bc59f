package domain

import (
	"encoding/json"
	"fmt"
)

type eventEnvelope struct {
	Type EventType
	Data json.RawMessage
}

func SerializeEvent(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s event: %w", event.GetType(), err)
	}
	return json.Marshal(eventEnvelope{Type: event.GetType(), Data: data})
}

func DeserializeEvent(buf []byte) (Event, error) {
	envelope := eventEnvelope{}
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, fmt.Errorf("failed to deserialize event: %w", err)
	}

	switch envelope.Type {
	case EventTypeLotteryStarted:
		return decode[LotteryStarted](envelope.Data)
	case EventTypePlayerJoined:
		return decode[PlayerJoined](envelope.Data)
	case EventTypeDrawRequested:
		return decode[DrawRequested](envelope.Data)
	case EventTypeWinnerPicked:
		return decode[WinnerPicked](envelope.Data)
	default:
		return nil, fmt.Errorf("unknown event type %d", envelope.Type)
	}
}

func SerializeEvents(events []Event) ([][]byte, error) {
	rawEvents := make([][]byte, 0, len(events))
	for _, event := range events {
		buf, err := SerializeEvent(event)
		if err != nil {
			return nil, err
		}
		rawEvents = append(rawEvents, buf)
	}
	return rawEvents, nil
}

func DeserializeEvents(rawEvents [][]byte) ([]Event, error) {
	events := make([]Event, 0, len(rawEvents))
	for _, buf := range rawEvents {
		event, err := DeserializeEvent(buf)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func decode[T Event](data []byte) (Event, error) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to deserialize %s event: %w", event.GetType(), err)
	}
	return event, nil
}
