package estimationHandler

import (
	"RooftopSolar/internal/api/estimation"
	contextPkg "RooftopSolar/pkg/context"
	"RooftopSolar/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
	"time"
)

// handleEstimationWebSocket treats every binary frame as one image. The bill
// comes from the electricity_bill query parameter and applies to every frame.
func (h *EstimationHandler) handleEstimationWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	if requestID == "" {
		requestID = "unknown"
	}

	h.log.WithField("request_id", requestID).Info("Estimation WebSocket client connected")
	defer h.log.WithField("request_id", requestID).Info("Estimation WebSocket client disconnected")

	bill, err := parseBill(h.validator, c.Query("electricity_bill"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second
	frame := 0

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Estimation WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			if !h.writeError(c, estimation.ErrInvalidImage) {
				break
			}
			continue
		}

		frame++
		ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.timeout)
		result, err := h.estimationService.Estimate(ctx, estimation.EstimateRequest{
			Image:           message,
			ElectricityBill: bill,
		})
		cancel()

		if err != nil {
			h.log.WithField("request_id", requestID).Errorf("Error estimating frame %d: %v", frame, err)
			if !h.writeError(c, err) {
				break
			}
			continue
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(estimation.EstimationData{Data: result}); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}

func (h *EstimationHandler) writeError(c *websocket.Conn, err error) bool {
	frame := estimation.EstimationData{
		Error: err.Error(),
		Code:  response.StatusCode(err, fiber.StatusInternalServerError),
	}
	if writeErr := c.WriteJSON(frame); writeErr != nil {
		h.log.Errorf("Error sending error response: %v", writeErr)
		return false
	}
	return true
}
