/*
Package types provides the value types and capability contracts shared by every
eoprod component.

# Value types

Descriptor is the metadata record of one variable (band, tie-point grid, flag
field). Every descriptor carries a VType (data, mask, meteorological, sensor,
info) and a VClass (default, spectral); spectral descriptors add wavelength,
bandwidth and an optional spectral response.

PixelBox and RegionMask describe a raster window and the polygon footprint
inside it. Raster carries decoded values together with the backend validity
mask.

# Capabilities

Backends plug into the system through narrow interfaces:

	NativeProduct   open sub-product: fields, pixels, geocoding, metadata
	Geocoder        pixel <-> latitude/longitude
	Geodesic        distance in meters between two positions
	Collocator      resample a slave product onto a master grid
	RegionExtractor optional backend-native window extraction

Handles are single-owner. The package holds no state.
*/
package types
