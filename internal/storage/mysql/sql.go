package mysql

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

const insertUserSQL = `
INSERT INTO users (id, email, name, role, created_at)
VALUES (:id, :email, :name, :role, :created_at)
`

const selectUserSQL = `SELECT id, email, name, role, created_at FROM users`

// -----------------------------------------------------------------------------
// LISTINGS
// -----------------------------------------------------------------------------

const listingColumns = `
  l.id, l.supplier_id, l.kind, l.title, l.description, l.city, l.country,
  l.lat, l.lon, l.price, l.currency, l.capacity, l.amenities, l.images,
  l.avg_rating, l.review_count, l.active, l.created_at, l.updated_at`

const insertListingSQL = `
INSERT INTO listings
  (id, supplier_id, kind, title, description, city, country, lat, lon, price,
   currency, capacity, amenities, images, review_count, active, created_at, updated_at)
VALUES
  (:id, :supplier_id, :kind, :title, :description, :city, :country, :lat, :lon, :price,
   :currency, :capacity, :amenities, :images, 0, :active, :created_at, :updated_at)
`

const updateListingSQL = `
UPDATE listings SET
  kind        = :kind,
  title       = :title,
  description = :description,
  city        = :city,
  country     = :country,
  lat         = :lat,
  lon         = :lon,
  price       = :price,
  currency    = :currency,
  capacity    = :capacity,
  amenities   = :amenities,
  images      = :images,
  active      = :active,
  updated_at  = :updated_at
WHERE id = :id
`

const recalcRatingSQL = `
UPDATE listings l
LEFT JOIN (
  SELECT listing_id, AVG(rating) AS avg_rating, COUNT(*) AS n
  FROM reviews WHERE listing_id = ?
  GROUP BY listing_id
) r ON r.listing_id = l.id
SET l.avg_rating   = r.avg_rating,
    l.review_count = COALESCE(r.n, 0)
WHERE l.id = ?
`

// Capacity used by overlapping active bookings on the same listing. Pending
// bookings past their expiry no longer count, swept or not.
const bookedQuantitySQL = `
SELECT COALESCE(SUM(quantity), 0)
FROM bookings
WHERE listing_id = ?
  AND status IN ('pending', 'confirmed')
  AND (status = 'confirmed' OR expires_at > ?)
  AND start_date < ?
  AND end_date > ?
`

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

const bookingColumns = `
  id, listing_id, tourist_id, start_date, end_date, quantity, guests,
  total, currency, status, expires_at, created_at, updated_at`

const lockListingSQL = `SELECT capacity FROM listings WHERE id = ? AND active = 1 FOR UPDATE`

const insertBookingSQL = `
INSERT INTO bookings
  (id, listing_id, tourist_id, start_date, end_date, quantity, guests,
   total, currency, status, expires_at, created_at, updated_at)
VALUES
  (:id, :listing_id, :tourist_id, :start_date, :end_date, :quantity, :guests,
   :total, :currency, :status, :expires_at, :created_at, :updated_at)
`

const transitionBookingSQL = `
UPDATE bookings SET status = ?, updated_at = ?
WHERE id = ? AND status IN (?)
`

const selectExpiredSQL = `
SELECT` + bookingColumns + `
FROM bookings
WHERE status = 'pending' AND expires_at < ?
FOR UPDATE
`

const selectFinishedSQL = `
SELECT` + bookingColumns + `
FROM bookings
WHERE status = 'confirmed' AND end_date <= ?
FOR UPDATE
`

const sweepBookingsSQL = `UPDATE bookings SET status = ?, updated_at = ? WHERE id IN (?)`

// -----------------------------------------------------------------------------
// PAYMENTS
// -----------------------------------------------------------------------------

const paymentColumns = `
  id, booking_id, provider, provider_ref, client_secret, amount, currency,
  status, attempt, created_at, updated_at`

const insertPaymentSQL = `
INSERT INTO payments
  (id, booking_id, provider, provider_ref, client_secret, amount, currency,
   status, attempt, created_at, updated_at)
VALUES
  (:id, :booking_id, :provider, :provider_ref, :client_secret, :amount, :currency,
   :status, :attempt, :created_at, :updated_at)
`

const updatePaymentStatusSQL = `UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`

const reopenPaymentSQL = `
UPDATE payments SET
  provider_ref  = :provider_ref,
  client_secret = :client_secret,
  status        = :status,
  attempt       = :attempt,
  updated_at    = :updated_at
WHERE id = :id AND status = 'failed'
`

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewSQL = "INSERT INTO reviews\n" +
	"  (id, listing_id, booking_id, tourist_id, rating, title, `text`, created_at)\n" +
	"VALUES (?, ?, ?, ?, ?, ?, ?, ?)"

const listReviewsSQL = "SELECT id, listing_id, booking_id, tourist_id, rating, title, `text`, created_at\n" +
	"FROM reviews\n" +
	"WHERE listing_id = ?\n"

const listReviewsAfterSQL = listReviewsSQL +
	"  AND (created_at < ? OR (created_at = ? AND id < ?))\n"

const reviewsOrderSQL = "ORDER BY created_at DESC, id DESC\nLIMIT ?"

// -----------------------------------------------------------------------------
// CROWD
// -----------------------------------------------------------------------------

const destinationColumns = `id, name, city, country, lat, lon, capacity, outdoor, rating`

const insertSensorSQL = `
INSERT INTO sensor_readings (destination_id, count, recorded_at) VALUES (?, ?, ?)
`

const latestSensorSQL = `
SELECT destination_id, count, recorded_at
FROM sensor_readings
WHERE destination_id = ?
ORDER BY recorded_at DESC
LIMIT 1
`

const upsertPopularityPrefix = "INSERT INTO popularity (destination_id, hour, score, fetched_at)\nVALUES "

const upsertPopularityOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  score      = VALUES(score),\n" +
	"  fetched_at = VALUES(fetched_at)\n"

const selectPopularitySQL = `
SELECT destination_id, hour, score, fetched_at
FROM popularity
WHERE destination_id = ?
ORDER BY hour
`

const upsertWeatherSQL = `
INSERT INTO weather (destination_id, cond, temp_c, observed_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  cond        = VALUES(cond),
  temp_c      = VALUES(temp_c),
  observed_at = VALUES(observed_at)
`

const latestWeatherSQL = `
SELECT destination_id, cond, temp_c, observed_at FROM weather WHERE destination_id = ?
`

const insertEventSQL = `
INSERT INTO crowd_events (id, destination_id, name, starts_at, ends_at, expected_attendance)
VALUES (:id, :destination_id, :name, :starts_at, :ends_at, :expected_attendance)
`

const eventsBetweenSQL = `
SELECT id, destination_id, name, starts_at, ends_at, expected_attendance
FROM crowd_events
WHERE destination_id = ? AND ends_at > ? AND starts_at < ?
ORDER BY starts_at
`

const insertCrowdIndexSQL = `
INSERT INTO crowd_index (destination_id, value, level, components, computed_at)
VALUES (?, ?, ?, ?, ?)
`

const crowdHistorySQL = `
SELECT destination_id, value, level, components, computed_at
FROM crowd_index
WHERE destination_id = ? AND computed_at >= ?
ORDER BY computed_at DESC
LIMIT ?
`

const insertMissSQL = `
INSERT INTO ingest_misses (destination_id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE http_status = VALUES(http_status), seen_at = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// TRANSIT
// -----------------------------------------------------------------------------

const selectAirportsSQL = "SELECT code AS `key`, name, lat, lon FROM airports"

const selectPortsSQL = "SELECT id AS `key`, name, lat, lon FROM ports ORDER BY id"

const selectRoutesSQL = `
SELECT id, from_port_id, to_port_id, departures, duration_min, price, currency, operator
FROM ferry_routes
ORDER BY id
`
