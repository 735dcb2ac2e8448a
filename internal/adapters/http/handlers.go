package http

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/usecases"
	"github.com/marcosgeo/marcos/internal/pkg/coords"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

// readUpload pulls the multipart "file" field plus the zone and merge form
// values out of a request.
func readUpload(c *fiber.Ctx, deps *Dependencies) (usecases.Upload, error) {
	var up usecases.Upload

	fh, err := c.FormFile("file")
	if err != nil {
		return up, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required"))
	}
	if deps.MaxUploadBytes > 0 && fh.Size > int64(deps.MaxUploadBytes) {
		return up, fmt.Errorf("%s is %d bytes: %w", fh.Filename, fh.Size, errUploadTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return up, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return up, fmt.Errorf("read upload: %w", err)
	}

	merge := false
	if v := c.FormValue("merge"); v != "" {
		if merge, err = strconv.ParseBool(v); err != nil {
			return up, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("merge must be a boolean, got %q", v))
		}
	}

	return usecases.Upload{
		Filename: fh.Filename,
		Data:     data,
		Zone:     c.FormValue("zone"),
		Merge:    merge,
	}, nil
}

func uploadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errUploadTooLarge) {
		return errTooLarge(c, err.Error())
	}
	return errorFor(c, err)
}

// PreviewImportHandler converts an uploaded survey file and returns the
// normalised collection without storing anything. With ?view=geojson only
// the FeatureCollection is returned.
func PreviewImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := readUpload(c, deps)
		if err != nil {
			return uploadError(c, err)
		}

		preview, err := deps.Imports.Preview(c.UserContext(), up)
		if err != nil {
			return errorFor(c, err)
		}

		c.Set("X-UTM-Zone", preview.Zone.Label())
		if c.Query("view") == "geojson" {
			c.Set(fiber.HeaderContentType, "application/geo+json")
			data, err := preview.Collection.MarshalJSON()
			if err != nil {
				return errInternal(c, "encode collection")
			}
			return c.Send(data)
		}
		return c.JSON(preview)
	}
}

// CreateImportHandler stores the parcels of an uploaded survey file. With
// async=true the file is queued for a worker and 202 is returned.
func CreateImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := readUpload(c, deps)
		if err != nil {
			return uploadError(c, err)
		}
		up.PropertyID = strings.TrimSpace(c.FormValue("property_id"))

		async := false
		if v := c.FormValue("async"); v != "" {
			if async, err = strconv.ParseBool(v); err != nil {
				return errBadRequest(c, "async must be a boolean")
			}
		}

		if async {
			job, err := deps.Imports.Enqueue(c.UserContext(), up)
			if err != nil {
				return errorFor(c, err)
			}
			c.Location("/v1/imports/" + job.ID)
			return c.Status(fiber.StatusAccepted).JSON(job)
		}

		job, err := deps.Imports.Commit(c.UserContext(), up)
		if err != nil {
			return errorFor(c, err)
		}
		c.Location("/v1/imports/" + job.ID)
		return c.Status(fiber.StatusCreated).JSON(job)
	}
}

// GetImportHandler returns one import job.
func GetImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		job, err := deps.Imports.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorFor(c, err)
		}
		if !job.Status.Terminal() {
			c.Set("Cache-Control", "no-cache")
		}
		return c.JSON(job)
	}
}

// ListParcelsHandler returns a page of a property's parcels.
func ListParcelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		propertyID := c.Params("id")
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 50
		}

		total, err := deps.Parcels.CountByProperty(c.UserContext(), propertyID)
		if err != nil {
			return errorFor(c, err)
		}
		parcels, err := deps.Parcels.ListByProperty(c.UserContext(), propertyID, limit, offset)
		if err != nil {
			return errorFor(c, err)
		}
		if parcels == nil {
			parcels = []domain.Parcel{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: parcels, Pagination: pg})
	}
}

// ContainingParcelsHandler returns the parcels covering a point.
func ContainingParcelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		parcels, err := deps.Parcels.FindContaining(c.UserContext(), lat, lon)
		if err != nil {
			return errorFor(c, err)
		}
		if parcels == nil {
			parcels = []domain.Parcel{}
		}
		return c.JSON(parcels)
	}
}

// ImportMarcosHandler upserts the survey markers of a CSV or XLSX sheet.
func ImportMarcosHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := readUpload(c, deps)
		if err != nil {
			return uploadError(c, err)
		}
		up.PropertyID = c.Params("id")

		res, err := deps.Marcos.ImportSheet(c.UserContext(), up)
		if err != nil {
			return errorFor(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// NearbyMarcosHandler returns markers within a radius of a point.
func NearbyMarcosHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		limit := c.QueryInt("limit", 50)

		marcos, err := deps.Marcos.FindNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errorFor(c, err)
		}
		if marcos == nil {
			marcos = []domain.Marco{}
		}
		return c.JSON(marcos)
	}
}

type parseCoordinateRequest struct {
	Value    any    `json:"value"`
	Easting  any    `json:"easting"`
	Northing any    `json:"northing"`
	Zone     string `json:"zone"`
}

// ParseCoordinateHandler recognises one coordinate value, or resolves an
// easting/northing pair to WGS84 when both are given.
func ParseCoordinateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req parseCoordinateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		switch {
		case req.Easting != nil && req.Northing != nil:
			zone := req.Zone
			if zone == "" {
				zone = deps.DefaultZone
			}
			proj := coords.ParseZoneLabel(zone)
			return c.JSON(fiber.Map{
				"zone": proj.Label(),
				"epsg": proj.EPSG(),
				"pair": coords.ParseCoordinatePair(req.Easting, req.Northing, proj),
			})
		case req.Value != nil:
			return c.JSON(coords.ParseCoordinate(req.Value))
		}
		return errBadRequest(c, "either value or easting and northing are required")
	}
}

// DetectZoneHandler returns the SIRGAS2000 UTM zone of a WGS84 point.
func DetectZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		zone := coords.ZoneForPoint(lon, lat)
		return c.JSON(fiber.Map{
			"label": zone.Label(),
			"zone":  zone.Zone,
			"south": zone.South,
			"epsg":  zone.EPSG,
			"proj4": zone.Projection().Proj4(),
		})
	}
}

// queryPoint reads the required lat and lon query parameters.
func queryPoint(c *fiber.Ctx) (lat, lon float64, err error) {
	latS, lonS := c.Query("lat"), c.Query("lon")
	if latS == "" || lonS == "" {
		return 0, 0, errors.New("lat and lon are required")
	}
	if lat, err = strconv.ParseFloat(latS, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid lat %q", latS)
	}
	if lon, err = strconv.ParseFloat(lonS, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid lon %q", lonS)
	}
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return 0, 0, errors.New("lat must be within ±90 and lon within ±180")
	}
	return lat, lon, nil
}
