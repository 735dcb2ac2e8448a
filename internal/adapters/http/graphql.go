package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/pkg/coords"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	parcelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Parcel",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"property_id":  &graphql.Field{Type: graphql.String},
			"import_id":    &graphql.Field{Type: graphql.String},
			"layer":        &graphql.Field{Type: graphql.String},
			"matricula":    &graphql.Field{Type: graphql.String},
			"nome":         &graphql.Field{Type: graphql.String},
			"proprietario": &graphql.Field{Type: graphql.String},
			"area_m2":      &graphql.Field{Type: graphql.Float},
			"perimetro_m":  &graphql.Field{Type: graphql.Float},
			"geometry": &graphql.Field{
				Type:        graphql.String,
				Description: "GeoJSON geometry, serialised",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if parcel, ok := p.Source.(domain.Parcel); ok {
						return string(parcel.Geometry), nil
					}
					return nil, nil
				},
			},
		},
	})

	importType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Import",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"property_id":   &graphql.Field{Type: graphql.String},
			"filename":      &graphql.Field{Type: graphql.String},
			"format":        &graphql.Field{Type: graphql.String},
			"zone":          &graphql.Field{Type: graphql.String},
			"status":        &graphql.Field{Type: graphql.String},
			"feature_count": &graphql.Field{Type: graphql.Int},
			"error":         &graphql.Field{Type: graphql.String},
			"created_at":    &graphql.Field{Type: graphql.DateTime},
			"updated_at":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	marcoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marco",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"property_id": &graphql.Field{Type: graphql.String},
			"code":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"source":      &graphql.Field{Type: graphql.String},
			"distance":    &graphql.Field{Type: graphql.Float},
		},
	})

	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"raw":      &graphql.Field{Type: graphql.String},
			"encoding": &graphql.Field{Type: graphql.String},
			"lat":      &graphql.Field{Type: graphql.Float},
			"lng":      &graphql.Field{Type: graphql.Float},
			"decimal":  &graphql.Field{Type: graphql.Float},
			"utm":      &graphql.Field{Type: graphql.Float},
			"valid":    &graphql.Field{Type: graphql.Boolean},
		},
	})

	pairType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CoordinatePair",
		Fields: graphql.Fields{
			"lat":    &graphql.Field{Type: graphql.Float},
			"lng":    &graphql.Field{Type: graphql.Float},
			"valid":  &graphql.Field{Type: graphql.Boolean},
			"method": &graphql.Field{Type: graphql.String},
		},
	})

	zoneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UTMZone",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"zone":  &graphql.Field{Type: graphql.Int},
			"south": &graphql.Field{Type: graphql.Boolean},
			"epsg":  &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"parcels": &graphql.Field{
				Type:        graphql.NewList(parcelType),
				Description: "Parcels of a property, largest first",
				Args: graphql.FieldConfigArgument{
					"property_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["property_id"].(string)
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					return deps.Parcels.ListByProperty(p.Context, id, limit, offset)
				},
			},
			"parcelsContaining": &graphql.Field{
				Type:        graphql.NewList(parcelType),
				Description: "Parcels covering a point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Parcels.FindContaining(p.Context, p.Args["lat"].(float64), p.Args["lon"].(float64))
				},
			},
			"import": &graphql.Field{
				Type:        importType,
				Description: "Get an import job by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Imports.Get(p.Context, p.Args["id"].(string))
				},
			},
			"marcosNearby": &graphql.Field{
				Type:        graphql.NewList(marcoType),
				Description: "Survey markers near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Marcos.FindNearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
			"parseCoordinate": &graphql.Field{
				Type:        coordinateType,
				Description: "Recognise a GMS, decimal or UTM coordinate value",
				Args: graphql.FieldConfigArgument{
					"value": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return coords.ParseCoordinate(p.Args["value"].(string)), nil
				},
			},
			"parseCoordinatePair": &graphql.Field{
				Type:        pairType,
				Description: "Resolve an easting/northing pair to WGS84",
				Args: graphql.FieldConfigArgument{
					"easting":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"northing": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"zone":     &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					zone, _ := p.Args["zone"].(string)
					if zone == "" {
						zone = deps.DefaultZone
					}
					return coords.ParseCoordinatePair(p.Args["easting"], p.Args["northing"], coords.ParseZoneLabel(zone)), nil
				},
			},
			"utmZone": &graphql.Field{
				Type:        zoneType,
				Description: "SIRGAS2000 UTM zone of a WGS84 point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					z := coords.ZoneForPoint(p.Args["lon"].(float64), p.Args["lat"].(float64))
					return map[string]interface{}{
						"label": z.Label(),
						"zone":  z.Zone,
						"south": z.South,
						"epsg":  z.EPSG,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
