package model

import (
	"time"
)

// AssetStatus is the review workflow state of an asset.
type AssetStatus string

const (
	AssetStatusNew               AssetStatus = "New"
	AssetStatusInReview          AssetStatus = "In Review"
	AssetStatusApproved          AssetStatus = "Approved"
	AssetStatusRejected          AssetStatus = "Rejected"
	AssetStatusReadyForPublisher AssetStatus = "Ready for Publisher"
	AssetStatusPickedUp          AssetStatus = "Picked Up"
)

// AllAssetStatuses returns every defined status in workflow order.
func AllAssetStatuses() []AssetStatus {
	return []AssetStatus{
		AssetStatusNew,
		AssetStatusInReview,
		AssetStatusApproved,
		AssetStatusRejected,
		AssetStatusReadyForPublisher,
		AssetStatusPickedUp,
	}
}

// Valid reports whether s is a defined status.
func (s AssetStatus) Valid() bool {
	for _, v := range AllAssetStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

var statusTransitions = map[AssetStatus][]AssetStatus{
	AssetStatusNew:               {AssetStatusInReview},
	AssetStatusInReview:          {AssetStatusApproved, AssetStatusRejected},
	AssetStatusApproved:          {AssetStatusReadyForPublisher},
	AssetStatusRejected:          {AssetStatusInReview},
	AssetStatusReadyForPublisher: {AssetStatusPickedUp},
}

// CanTransition reports whether the review workflow allows moving from s to next.
func (s AssetStatus) CanTransition(next AssetStatus) bool {
	for _, v := range statusTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// AssetContentType classifies who produced the creative.
type AssetContentType string

const (
	ContentTypeBranded  AssetContentType = "Branded"
	ContentTypeEndorsed AssetContentType = "Endorsed"
	ContentTypeUGC      AssetContentType = "UGC"
	ContentTypeMixed    AssetContentType = "Mixed"
	ContentTypeNA       AssetContentType = "N/A"
)

// AllContentTypes returns every defined content type.
func AllContentTypes() []AssetContentType {
	return []AssetContentType{ContentTypeBranded, ContentTypeEndorsed, ContentTypeUGC, ContentTypeMixed, ContentTypeNA}
}

// Valid reports whether c is a defined content type.
func (c AssetContentType) Valid() bool {
	for _, v := range AllContentTypes() {
		if c == v {
			return true
		}
	}
	return false
}

// MediaKind is the asset format detected from the upload's MIME type.
type MediaKind string

const (
	MediaVideo    MediaKind = "Video"
	MediaImage    MediaKind = "Image"
	MediaAudio    MediaKind = "Audio"
	MediaBlogPost MediaKind = "Blog Post"
)

// ManualContext is the user-supplied metadata attached to an upload.
type ManualContext struct {
	CampaignName       string   `json:"campaignName,omitempty"`
	CreativeAgencyName string   `json:"creativeAgencyName,omitempty"`
	EndorsementType    string   `json:"endorsementType,omitempty"`
	NarratorType       string   `json:"narratorType,omitempty"`
	PlatformAired      []string `json:"platformAired,omitempty"`
	WasCreativeTested  *bool    `json:"wasCreativeTested,omitempty"`
}

// QuantitativeContext is objective data extracted by perception services.
type QuantitativeContext struct {
	Transcript      string   `json:"transcript,omitempty"`
	ShotCount       *int     `json:"shotCount,omitempty"`
	DetectedObjects []string `json:"detectedObjects,omitempty"`
	OCRText         string   `json:"ocrText,omitempty"`
}

// IsZero reports whether no quantitative data is present.
func (q *QuantitativeContext) IsZero() bool {
	return q == nil || (q.Transcript == "" && q.ShotCount == nil && len(q.DetectedObjects) == 0 && q.OCRText == "")
}

// Asset is the persisted record merging manual metadata with every
// analysis result for one creative.
type Asset struct {
	ID          string    `json:"id"`
	ContentSnID string    `json:"contentSnId"`
	Name        string    `json:"name,omitempty"`
	Creator     string    `json:"creator"`
	Type        MediaKind `json:"type"`
	Length      string    `json:"length"`
	Campaign    string    `json:"campaign"`
	Tags        string    `json:"tags"`
	Daypart     string    `json:"daypart"`
	SpotLength  string    `json:"spotLength"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	MediaURI    string    `json:"mediaUri,omitempty"`

	ParentCompany string              `json:"parentCompany,omitempty"`
	Brand         string              `json:"brand,omitempty"`
	Product       string              `json:"product,omitempty"`
	BrandSafety   *BrandSafetyVerdict `json:"brandSafety,omitempty"`

	Analysis        *QualitativeAnalysis `json:"analysis,omitempty"`
	MLReadyFeatures FeatureVector        `json:"mlReadyFeatures,omitempty"`
	Manual          *ManualContext       `json:"manualData,omitempty"`
	Quantitative    *QuantitativeContext `json:"quantitativeData,omitempty"`

	Status      AssetStatus      `json:"status"`
	ContentType AssetContentType `json:"contentType"`

	ContentScore *float64 `json:"contentScore,omitempty"`
	ROAS         *float64 `json:"roas,omitempty"`
	Spend        *float64 `json:"spend,omitempty"`
	CPA          *float64 `json:"cpa,omitempty"`

	// CreationDate is the ISO date (YYYY-MM-DD) derived from CreatedAt.
	CreationDate string    `json:"creationDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DateLayout formats Asset.CreationDate.
const DateLayout = "2006-01-02"

// StampCreated sets CreatedAt and the derived CreationDate from t (UTC).
func (a *Asset) StampCreated(t time.Time) {
	a.CreatedAt = t.UTC()
	a.CreationDate = a.CreatedAt.Format(DateLayout)
}

// Performance returns the attribution summary for a stored asset.
func (a *Asset) Performance(conversions int) AssetPerformance {
	return AssetPerformance{
		Creator:     a.Creator,
		Type:        string(a.Type),
		Length:      a.Length,
		Campaign:    a.Campaign,
		Tags:        a.Tags,
		Daypart:     a.Daypart,
		SpotLength:  a.SpotLength,
		Conversions: conversions,
		ContentSnID: a.ContentSnID,
	}
}
