package i18n

// DefaultMessages returns built-in translations for all supported locales.
// These can be overridden by loading JSON files from a directory.
func DefaultMessages() map[Locale]map[string]string {
	return map[Locale]map[string]string{
		LocaleEn: enMessages,
		LocaleKo: koMessages,
	}
}

var enMessages = map[string]string{
	// Common errors
	"error.not_found":         "The requested resource was not found",
	"error.unauthorized":      "Authentication required",
	"error.forbidden":         "You do not have permission to perform this action",
	"error.bad_request":       "Invalid request",
	"error.internal":          "An internal server error occurred",
	"error.too_many_requests": "Too many requests. Please try again shortly",
	"error.validation":        "The submitted values are invalid",

	// Conversations
	"conversation.not_found":       "Conversation not found",
	"conversation.create_failed":   "Could not create the conversation",
	"conversation.not_group":       "This operation applies to group conversations only",
	"conversation.role_required":   "Only the owner or an admin can change group settings",
	"conversation.left":            "You have left the conversation",
	"conversation.group_too_large": "The group exceeds the maximum number of participants",
	"conversation.name_required":   "A group name is required",

	// Messages
	"message.send_failed":         "Could not send the message",
	"message.empty":               "A message needs text or an attachment",
	"message.not_found":           "Message not found",
	"message.edit_window_expired": "This message can no longer be edited",
	"message.not_sender":          "Only the sender can modify this message",
	"message.invalid_reply":       "The replied-to message does not belong to this conversation",
	"message.replies_disabled":    "Replies are disabled in this conversation",
	"message.rate_limited":        "You are sending messages too quickly. Please wait a moment",

	// Messaging policy
	"messaging.disabled":           "Messaging is currently disabled",
	"messaging.dm_not_allowed":     "You are not allowed to start direct messages",
	"messaging.group_not_allowed":  "You are not allowed to create group chats",
	"messaging.recipient_blocked":  "You cannot message this member",
	"messaging.attachments_off":    "Attachments are currently disabled",
	"messaging.attachment_too_big": "The attachment exceeds the size limit",
	"messaging.attachment_type":    "This attachment type is not allowed",
	"messaging.attachment_bad":     "The attachment is not allowed by the current policy",

	// Members
	"member.not_found": "Member not found",
}

var koMessages = map[string]string{
	// Common errors
	"error.not_found":         "요청한 리소스를 찾을 수 없습니다",
	"error.unauthorized":      "인증이 필요합니다",
	"error.forbidden":         "접근 권한이 없습니다",
	"error.bad_request":       "잘못된 요청입니다",
	"error.internal":          "서버 내부 오류가 발생했습니다",
	"error.too_many_requests": "요청이 너무 많습니다. 잠시 후 다시 시도해주세요",
	"error.validation":        "입력값이 올바르지 않습니다",

	// Conversations
	"conversation.not_found":       "대화를 찾을 수 없습니다",
	"conversation.create_failed":   "대화를 생성할 수 없습니다",
	"conversation.not_group":       "그룹 대화에서만 가능한 작업입니다",
	"conversation.role_required":   "그룹 설정은 소유자 또는 관리자만 변경할 수 있습니다",
	"conversation.left":            "대화에서 나갔습니다",
	"conversation.group_too_large": "그룹 최대 인원을 초과했습니다",
	"conversation.name_required":   "그룹 이름이 필요합니다",

	// Messages
	"message.send_failed":         "메시지를 보낼 수 없습니다",
	"message.empty":               "메시지 내용 또는 첨부파일이 필요합니다",
	"message.not_found":           "메시지를 찾을 수 없습니다",
	"message.edit_window_expired": "더 이상 수정할 수 없는 메시지입니다",
	"message.not_sender":          "메시지 작성자만 수정할 수 있습니다",
	"message.invalid_reply":       "답장 대상 메시지가 이 대화에 없습니다",
	"message.replies_disabled":    "이 대화에서는 답장이 비활성화되어 있습니다",
	"message.rate_limited":        "메시지를 너무 빠르게 보내고 있습니다. 잠시 후 다시 시도해주세요",

	// Messaging policy
	"messaging.disabled":           "메시징 기능이 비활성화되어 있습니다",
	"messaging.dm_not_allowed":     "쪽지를 시작할 권한이 없습니다",
	"messaging.group_not_allowed":  "그룹 채팅을 만들 권한이 없습니다",
	"messaging.recipient_blocked":  "이 회원에게 메시지를 보낼 수 없습니다",
	"messaging.attachments_off":    "첨부파일 기능이 비활성화되어 있습니다",
	"messaging.attachment_too_big": "첨부파일 크기가 제한을 초과했습니다",
	"messaging.attachment_type":    "허용되지 않는 첨부파일 형식입니다",
	"messaging.attachment_bad":     "현재 정책상 허용되지 않는 첨부파일입니다",

	// Members
	"member.not_found": "회원을 찾을 수 없습니다",
}
