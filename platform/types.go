package platform

import "grassroot-chatbot/backend/conversation/models"

// Request data types the platform uses to say what kind of answer it is
// waiting for next.
const (
	RequestNone          = "NONE"
	RequestMenuSelection = "MENU_SELECTION"
	RequestGPSLocation   = "LOCATION_GPS_REQUIRED"
	RequestProvince      = "LOCATION_PROVINCE_OKAY"
)

// AuxRequestDataType is the aux-property key carrying the pending request
// data type between turns.
const AuxRequestDataType = "requestDataType"

// SkipPayload is the machine token for an explicit skip of an optional
// platform question.
const SkipPayload = "<<SKIP>>"

// LocationRequested reports whether a request data type expects a
// location-class answer (GPS fix or province name).
func LocationRequested(dataType string) bool {
	return dataType == RequestGPSLocation || dataType == RequestProvince
}

// ProvinceCodes maps NLU province entity values to platform province codes.
var ProvinceCodes = map[string]string{
	"gauteng":       "ZA_GP",
	"western_cape":  "ZA_WC",
	"eastern_cape":  "ZA_EC",
	"northern_cape": "ZA_NC",
	"limpopo":       "ZA_LP",
	"mpumalanga":    "ZA_MP",
	"kzn":           "ZA_KZN",
	"north_west":    "ZA_NW",
	"free_state":    "ZA_FS",
}

// SearchResult is the platform's answer to a join-phrase search or an
// entity selection.
type SearchResult struct {
	EntityFound      bool         `json:"entityFound"`
	EntityType       string       `json:"entityType"`
	EntityUID        string       `json:"entityUid"`
	ResponseMessages []string     `json:"responseMessages"`
	ResponseMenu     *models.Menu `json:"responseMenu,omitempty"`
	PossibleEntities *models.Menu `json:"possibleEntities,omitempty"`
	RequestDataType  string       `json:"requestDataType,omitempty"`
}

// Found reports whether the search produced anything actionable.
func (s *SearchResult) Found() bool {
	return s != nil && (s.EntityFound || s.PossibleEntities.Len() > 0)
}

// EntityReply is the body of a continuation request for a known entity.
type EntityReply struct {
	UserMessage       string            `json:"userMessage,omitempty"`
	Location          *Location         `json:"location,omitempty"`
	AuxProperties     map[string]string `json:"auxProperties,omitempty"`
	MenuOptionPayload string            `json:"menuOptionPayload,omitempty"`
}

// Location is a GPS fix forwarded untouched from the channel.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// EntityResponse is the platform's next step in an entity flow.
type EntityResponse struct {
	Messages        []string          `json:"messages"`
	EntityType      string            `json:"entityType"`
	EntityUID       string            `json:"entityUid"`
	AuxProperties   map[string]string `json:"auxProperties,omitempty"`
	Menu            *models.Menu      `json:"menu,omitempty"`
	RequestDataType string            `json:"requestDataType,omitempty"`
}
